package overlay

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Boundary outlines a region and shades everything outside it.
type Boundary struct {
	*Base
}

// NewBoundary creates a boundary overlay.
func NewBoundary(spec Spec) *Boundary {
	b := &Boundary{}
	b.Base = newBase(spec, b.build)
	return b
}

func (b *Boundary) build(ctx context.Context, env *Env, data []*geojson.FeatureCollection, done func([]string, error)) {
	m := env.Stack.Map
	outlineID, shadedID := b.spec.ID+"-outline", b.spec.ID+"-shaded"

	inverted, err := Invert(data[0])
	if err != nil {
		done(nil, &ParseError{Overlay: b.spec.ID, Location: b.spec.Data[0], Err: err})
		return
	}
	if err := addSource(m, outlineID, data[0], b.spec.Attribution); err != nil {
		done(nil, err)
		return
	}
	if err := addSource(m, shadedID, inverted, b.spec.Attribution); err != nil {
		done(nil, err)
		return
	}

	o, vis := b.spec.Options, b.spec.DefaultVisibility()
	outline := lineLayer(outlineID, outlineID, o, vis)
	shaded := mapsurface.Layer{
		ID:     shadedID,
		Type:   mapsurface.TypeFill,
		Source: shadedID,
		Layout: map[string]any{mapsurface.PropVisibility: vis},
		Paint: map[string]any{
			"fill-color":   o.Value("fill-color", nil),
			"fill-opacity": o.Value("fill-opacity", 1),
		},
	}
	for _, l := range []mapsurface.Layer{outline, shaded} {
		if err := m.AddLayer(l, env.Stack.Anchor()); err != nil {
			done(nil, err)
			return
		}
	}
	done([]string{outlineID, shadedID}, nil)
}

// worldBox is the outer ring of the mask; the region becomes its hole.
var worldBox = orb.Ring{{180, -90}, {180, 90}, {-180, 90}, {-180, -90}, {180, -90}}

// Invert returns a deep copy of fc whose first polygon covers the world
// outside the original region. fc is not modified.
func Invert(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	if fc == nil || len(fc.Features) == 0 {
		return nil, errors.New("boundary has no features")
	}
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		c := geojson.NewFeature(orb.Clone(f.Geometry))
		c.ID = f.ID
		c.Properties = f.Properties.Clone()
		out.Append(c)
	}

	mask := func(poly orb.Polygon) (orb.Polygon, error) {
		if len(poly) == 0 {
			return nil, errors.New("boundary polygon has no rings")
		}
		return append(orb.Polygon{worldBox.Clone()}, poly...), nil
	}
	first := out.Features[0]
	switch g := first.Geometry.(type) {
	case orb.Polygon:
		p, err := mask(g)
		if err != nil {
			return nil, err
		}
		first.Geometry = p
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, errors.New("boundary polygon has no rings")
		}
		p, err := mask(g[0])
		if err != nil {
			return nil, err
		}
		g[0] = p
	default:
		return nil, fmt.Errorf("boundary geometry is %T, want polygon", g)
	}
	return out, nil
}
