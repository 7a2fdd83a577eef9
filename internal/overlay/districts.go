package overlay

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Districts outlines district polygons and labels each district at a center
// point. The first data location holds polygons, the second label points.
type Districts struct {
	*Base
}

// NewDistricts creates a districts overlay.
func NewDistricts(spec Spec) *Districts {
	d := &Districts{}
	d.Base = newBase(spec, d.build)
	return d
}

func (d *Districts) build(ctx context.Context, env *Env, data []*geojson.FeatureCollection, done func([]string, error)) {
	m := env.Stack.Map
	outlineID, symbolsID := d.spec.ID+"-outline", d.spec.ID+"-symbols"
	if err := addSource(m, outlineID, data[0], d.spec.Attribution); err != nil {
		done(nil, err)
		return
	}
	if err := addSource(m, symbolsID, data[1], d.spec.Attribution); err != nil {
		done(nil, err)
		return
	}

	o, vis := d.spec.Options, d.spec.DefaultVisibility()
	labels := mapsurface.Layer{
		ID:     symbolsID,
		Type:   mapsurface.TypeSymbol,
		Source: symbolsID,
		Layout: map[string]any{
			mapsurface.PropVisibility: vis,
			"text-size":               32,
			"text-font":               []any{"Open Sans Bold", "Arial Unicode MS Bold"},
			"text-field":              []any{"get", o.String("label-property", "DISTRICT")},
			"symbol-sort-key":         0,
		},
		Paint: map[string]any{
			"text-color":      o.Value("line-color", nil),
			"text-halo-color": "rgba(255, 255, 255, 128)",
			"text-halo-width": 3,
		},
	}
	// Both layers carry labels-level content and go on top of the stack.
	for _, l := range []mapsurface.Layer{lineLayer(outlineID, outlineID, o, vis), labels} {
		if err := m.AddLayer(l, ""); err != nil {
			done(nil, err)
			return
		}
	}
	done([]string{outlineID, symbolsID}, nil)
}
