package overlay

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Heatmap draws points as a density heatmap up to zoom 15 that fades into
// individual circles from zoom 14.
type Heatmap struct {
	*Base
}

// NewHeatmap creates a heatmap overlay.
func NewHeatmap(spec Spec) *Heatmap {
	h := &Heatmap{}
	h.Base = newBase(spec, h.build)
	return h
}

func (h *Heatmap) build(ctx context.Context, env *Env, data []*geojson.FeatureCollection, done func([]string, error)) {
	m := env.Stack.Map
	if err := addSource(m, h.spec.ID, data[0], h.spec.Attribution); err != nil {
		done(nil, err)
		return
	}
	o, vis := h.spec.Options, h.spec.DefaultVisibility()
	heatmapID, pointsID := h.spec.ID+"-heatmap", h.spec.ID+"-points"

	heat := mapsurface.Layer{
		ID:      heatmapID,
		Type:    mapsurface.TypeHeatmap,
		Source:  h.spec.ID,
		MaxZoom: 15,
		Layout:  map[string]any{mapsurface.PropVisibility: vis},
		Paint: map[string]any{
			"heatmap-weight":    o.Value("heatmap-weight", 1),
			"heatmap-intensity": stops([2]float64{9, 0.05}, [2]float64{11, 0.5}, [2]float64{15, 1.5}),
			"heatmap-color":     o.Value("heatmap-color", nil),
			"heatmap-radius":    stops([2]float64{11, 15}, [2]float64{15, 20}),
			"heatmap-opacity":   map[string]any{"default": 1, "stops": [][2]float64{{14, 1}, {15, 0}}},
		},
	}
	points := mapsurface.Layer{
		ID:      pointsID,
		Type:    mapsurface.TypeCircle,
		Source:  h.spec.ID,
		MinZoom: 14,
		Layout:  map[string]any{mapsurface.PropVisibility: vis},
		Paint: map[string]any{
			"circle-radius":       o.Value("circle-radius", 10),
			"circle-color":        o.Value("circle-color", nil),
			"circle-stroke-color": "black",
			"circle-stroke-width": 1,
			"circle-opacity":      stops([2]float64{14, 0}, [2]float64{15, 1}),
		},
	}
	for _, l := range []mapsurface.Layer{heat, points} {
		if err := m.AddLayer(l, env.Stack.Anchor()); err != nil {
			done(nil, err)
			return
		}
	}
	done([]string{heatmapID, pointsID}, nil)
}

// stops builds a zoom function {"stops": [[zoom, value], ...]}.
func stops(s ...[2]float64) map[string]any {
	return map[string]any{"stops": s}
}
