package overlay

import (
	"bytes"
	"context"
	"image"
	_ "image/png"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Symbol draws point features with a marker icon and a name label from zoom
// 13. The icon loads asynchronously before the layer is added.
type Symbol struct {
	*Base
}

// NewSymbol creates a symbol overlay. The marker-url option locates the icon.
func NewSymbol(spec Spec) *Symbol {
	s := &Symbol{}
	s.Base = newBase(spec, s.build)
	return s
}

// MarkerImage is the image name the symbol layer refers to.
func (s *Symbol) MarkerImage() string {
	return s.spec.ID + "-marker"
}

func (s *Symbol) build(ctx context.Context, env *Env, data []*geojson.FeatureCollection, done func([]string, error)) {
	if err := addSource(env.Stack.Map, s.spec.ID, data[0], s.spec.Attribution); err != nil {
		done(nil, err)
		return
	}
	url := s.spec.Options.String("marker-url", "")
	go func() {
		img, err := loadImage(ctx, env.Fetcher, url)
		env.Post(func() {
			if err != nil {
				done(nil, err)
				return
			}
			done(s.addLayer(env, img))
		})
	}()
}

func (s *Symbol) addLayer(env *Env, img image.Image) ([]string, error) {
	m := env.Stack.Map
	if err := m.AddImage(s.MarkerImage(), img); err != nil {
		return nil, err
	}
	layer := mapsurface.Layer{
		ID:     s.spec.ID,
		Type:   mapsurface.TypeSymbol,
		Source: s.spec.ID,
		Layout: map[string]any{
			"icon-image": s.MarkerImage(),
			"text-field": s.spec.Options.Value("text-field", []any{
				"step", []any{"zoom"}, "", 13, []any{"get", "name"},
			}),
			"text-font":               []any{"Open Sans Semibold", "Arial Unicode MS Bold"},
			"text-offset":             []any{0, 1.25},
			"text-anchor":             "top",
			mapsurface.PropVisibility: s.spec.DefaultVisibility(),
		},
	}
	// Labels belong above the base map's labels, so the layer goes on top.
	if err := m.AddLayer(layer, ""); err != nil {
		return nil, err
	}
	return []string{s.spec.ID}, nil
}

func loadImage(ctx context.Context, f Fetcher, url string) (image.Image, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, &ImageLoadError{URL: url, Err: err}
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, &ImageLoadError{URL: url, Err: err}
	}
	return img, nil
}
