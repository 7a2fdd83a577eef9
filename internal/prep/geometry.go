package prep

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

// Simplify returns a copy of fc with every geometry simplified by
// Douglas-Peucker. tolerance is in ground meters; the work happens in Web
// Mercator, scaled to each feature's latitude. Null properties are dropped.
func Simplify(fc *geojson.FeatureCollection, tolerance float64) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g := toMercator(f.Geometry)
		scale := project.MercatorScaleFactor(f.Geometry.Bound().Center())
		g = simplify.DouglasPeucker(tolerance * scale).Simplify(g)

		c := geojson.NewFeature(project.Geometry(g, project.Mercator.ToWGS84))
		c.ID = f.ID
		for k, v := range f.Properties {
			if v != nil {
				c.Properties[k] = v
			}
		}
		out.Append(c)
	}
	return out
}

// Centers returns one point per feature at the area centroid of its
// geometry, computed in Web Mercator. Properties are copied.
func Centers(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d has no geometry", i)
		}
		center, _ := planar.CentroidArea(toMercator(f.Geometry))
		p := project.Mercator.ToWGS84(center)

		c := geojson.NewFeature(p)
		c.ID = f.ID
		c.Properties = f.Properties.Clone()
		out.Append(c)
	}
	return out, nil
}

// toMercator projects a copy of g.
func toMercator(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), project.WGS84.ToMercator)
}

// ReadFile loads a GeoJSON feature collection.
func ReadFile(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// WriteFile stores fc as GeoJSON.
func WriteFile(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
