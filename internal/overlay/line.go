package overlay

import (
	"context"
	"fmt"
	"html"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Line draws a feature collection as a single line layer.
type Line struct {
	*Base
}

// NewLine creates a line overlay.
func NewLine(spec Spec) *Line {
	l := &Line{}
	l.Base = newBase(spec, l.build)
	return l
}

func (l *Line) build(ctx context.Context, env *Env, data []*geojson.FeatureCollection, done func([]string, error)) {
	m := env.Stack.Map
	if err := addSource(m, l.spec.ID, data[0], l.spec.Attribution); err != nil {
		done(nil, err)
		return
	}
	layer := lineLayer(l.spec.ID, l.spec.ID, l.spec.Options, l.spec.DefaultVisibility())
	if err := m.AddLayer(layer, env.Stack.Anchor()); err != nil {
		done(nil, err)
		return
	}
	if dash, ok := l.spec.Options["line-dasharray"]; ok {
		if err := m.SetPaintProperty(l.spec.ID, "line-dasharray", dash); err != nil {
			done(nil, err)
			return
		}
	}
	done([]string{l.spec.ID}, nil)
}

// Legend returns an SVG swatch of the line.
func (l *Line) Legend() string {
	const width, height = 25, 16
	lw := l.spec.Options.Float("line-width", 1)
	color := html.EscapeString(l.spec.Options.String("line-color", "#000"))
	return fmt.Sprintf(`<svg width="%d" height="%d" viewBox="0 0 %d %d" class="overlay-preview-icon">`+
		`<rect x="0%%" y="0%%" width="100%%" height="100%%" fill="#fff"/>`+
		`<rect y="%g" width="100%%" height="%g" fill="%s"/></svg>`,
		width, height, width, height, float64(height)/2-lw/2, lw, color)
}

// lineLayer builds a line layer with round joins and caps unless configured.
func lineLayer(id, source string, o Options, visibility string) mapsurface.Layer {
	return mapsurface.Layer{
		ID:     id,
		Type:   mapsurface.TypeLine,
		Source: source,
		Layout: map[string]any{
			"line-join":               o.Value("line-join", "round"),
			"line-cap":                o.Value("line-cap", "round"),
			mapsurface.PropVisibility: visibility,
		},
		Paint: map[string]any{
			"line-color":   o.Value("line-color", nil),
			"line-opacity": o.Value("line-opacity", 1),
			"line-width":   o.Value("line-width", nil),
			"line-offset":  o.Value("line-offset", 0),
		},
	}
}
