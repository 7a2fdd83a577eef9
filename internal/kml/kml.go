// Package kml converts KML placemark documents into GeoJSON feature
// collections.
//
// Supported geometry: Point, LineString, Polygon and MultiGeometry of those.
// Placemark name, description, styleUrl and ExtendedData become feature
// properties; referenced LineStyle and PolyStyle become simplestyle
// properties (stroke, stroke-opacity, stroke-width, fill, fill-opacity).
package kml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrNotKML is returned when the document root is not a kml element.
var ErrNotKML = errors.New("not a KML document")

type placemark struct {
	Name          string         `xml:"name"`
	Description   string         `xml:"description"`
	StyleURL      string         `xml:"styleUrl"`
	Data          []data         `xml:"ExtendedData>Data"`
	SimpleData    []data         `xml:"ExtendedData>SchemaData>SimpleData"`
	Style         *style         `xml:"Style"`
	Point         *coords        `xml:"Point"`
	LineString    *coords        `xml:"LineString"`
	Polygon       *polygon       `xml:"Polygon"`
	MultiGeometry *multiGeometry `xml:"MultiGeometry"`
}

type data struct {
	Name     string `xml:"name,attr"`
	Value    string `xml:"value"`
	CharData string `xml:",chardata"`
}

func (d data) value() string {
	if d.Value != "" {
		return d.Value
	}
	return strings.TrimSpace(d.CharData)
}

type coords struct {
	Coordinates string `xml:"coordinates"`
}

type polygon struct {
	Outer string   `xml:"outerBoundaryIs>LinearRing>coordinates"`
	Inner []string `xml:"innerBoundaryIs>LinearRing>coordinates"`
}

type multiGeometry struct {
	Points   []coords        `xml:"Point"`
	Lines    []coords        `xml:"LineString"`
	Polygons []polygon       `xml:"Polygon"`
	Nested   []multiGeometry `xml:"MultiGeometry"`
}

type style struct {
	ID   string `xml:"id,attr"`
	Line *struct {
		Color string  `xml:"color"`
		Width float64 `xml:"width"`
	} `xml:"LineStyle"`
	Poly *struct {
		Color string `xml:"color"`
	} `xml:"PolyStyle"`
}

type styleMap struct {
	ID    string `xml:"id,attr"`
	Pairs []struct {
		Key      string `xml:"key"`
		StyleURL string `xml:"styleUrl"`
	} `xml:"Pair"`
}

// Convert reads a KML document and returns its placemarks as features.
func Convert(r io.Reader) (*geojson.FeatureCollection, error) {
	dec := xml.NewDecoder(r)

	var (
		rootSeen   bool
		placemarks []placemark
		styles     = map[string]style{}
		styleMaps  = map[string]string{}
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml decode: %w", err)
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			if el.Name.Local != "kml" {
				return nil, fmt.Errorf("%w: root element %q", ErrNotKML, el.Name.Local)
			}
			rootSeen = true
			continue
		}

		switch el.Name.Local {
		case "Placemark":
			var p placemark
			if err := dec.DecodeElement(&p, &el); err != nil {
				return nil, fmt.Errorf("placemark: %w", err)
			}
			placemarks = append(placemarks, p)
		case "Style":
			var s style
			if err := dec.DecodeElement(&s, &el); err != nil {
				return nil, fmt.Errorf("style: %w", err)
			}
			if s.ID != "" {
				styles["#"+s.ID] = s
			}
		case "StyleMap":
			var sm styleMap
			if err := dec.DecodeElement(&sm, &el); err != nil {
				return nil, fmt.Errorf("style map: %w", err)
			}
			for _, p := range sm.Pairs {
				if p.Key == "normal" {
					styleMaps["#"+sm.ID] = p.StyleURL
				}
			}
		}
	}
	if !rootSeen {
		return nil, ErrNotKML
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range placemarks {
		geom, err := p.geometry()
		if err != nil {
			return nil, fmt.Errorf("placemark %q: %w", p.Name, err)
		}
		if geom == nil {
			continue
		}
		f := geojson.NewFeature(geom)
		p.properties(f.Properties, resolveStyle(p, styles, styleMaps))
		fc.Append(f)
	}
	return fc, nil
}

func resolveStyle(p placemark, styles map[string]style, styleMaps map[string]string) *style {
	if p.Style != nil {
		return p.Style
	}
	url := p.StyleURL
	if target, ok := styleMaps[url]; ok {
		url = target
	}
	if s, ok := styles[url]; ok {
		return &s
	}
	return nil
}

func (p placemark) properties(props geojson.Properties, s *style) {
	if p.Name != "" {
		props["name"] = strings.TrimSpace(p.Name)
	}
	if p.Description != "" {
		props["description"] = strings.TrimSpace(p.Description)
	}
	if p.StyleURL != "" {
		props["styleUrl"] = p.StyleURL
	}
	for _, d := range append(p.Data, p.SimpleData...) {
		if d.Name != "" {
			props[d.Name] = d.value()
		}
	}
	if s == nil {
		return
	}
	if s.Line != nil {
		if hex, opacity, ok := kmlColor(s.Line.Color); ok {
			props["stroke"] = hex
			props["stroke-opacity"] = opacity
		}
		if s.Line.Width > 0 {
			props["stroke-width"] = s.Line.Width
		}
	}
	if s.Poly != nil {
		if hex, opacity, ok := kmlColor(s.Poly.Color); ok {
			props["fill"] = hex
			props["fill-opacity"] = opacity
		}
	}
}

func (p placemark) geometry() (orb.Geometry, error) {
	switch {
	case p.Point != nil:
		return parsePoint(p.Point.Coordinates)
	case p.LineString != nil:
		return parseLine(p.LineString.Coordinates)
	case p.Polygon != nil:
		return parsePolygon(*p.Polygon)
	case p.MultiGeometry != nil:
		return p.MultiGeometry.geometry()
	}
	return nil, nil
}

func (m multiGeometry) collect() ([]orb.Geometry, error) {
	var geoms []orb.Geometry
	for _, c := range m.Points {
		g, err := parsePoint(c.Coordinates)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, g)
	}
	for _, c := range m.Lines {
		g, err := parseLine(c.Coordinates)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, g)
	}
	for _, c := range m.Polygons {
		g, err := parsePolygon(c)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, g)
	}
	for _, n := range m.Nested {
		sub, err := n.collect()
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, sub...)
	}
	return geoms, nil
}

// geometry folds homogeneous members into the matching Multi type.
func (m multiGeometry) geometry() (orb.Geometry, error) {
	geoms, err := m.collect()
	if err != nil || len(geoms) == 0 {
		return nil, err
	}
	switch geoms[0].(type) {
	case orb.Point:
		var mp orb.MultiPoint
		for _, g := range geoms {
			p, ok := g.(orb.Point)
			if !ok {
				return orb.Collection(geoms), nil
			}
			mp = append(mp, p)
		}
		return mp, nil
	case orb.LineString:
		var ml orb.MultiLineString
		for _, g := range geoms {
			l, ok := g.(orb.LineString)
			if !ok {
				return orb.Collection(geoms), nil
			}
			ml = append(ml, l)
		}
		return ml, nil
	case orb.Polygon:
		var mp orb.MultiPolygon
		for _, g := range geoms {
			p, ok := g.(orb.Polygon)
			if !ok {
				return orb.Collection(geoms), nil
			}
			mp = append(mp, p)
		}
		return mp, nil
	}
	return orb.Collection(geoms), nil
}

func parsePoint(s string) (orb.Geometry, error) {
	pts, err := parseCoords(s)
	if err != nil {
		return nil, err
	}
	if len(pts) != 1 {
		return nil, fmt.Errorf("point has %d coordinates", len(pts))
	}
	return pts[0], nil
}

func parseLine(s string) (orb.Geometry, error) {
	pts, err := parseCoords(s)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("line has %d coordinates", len(pts))
	}
	return orb.LineString(pts), nil
}

func parsePolygon(p polygon) (orb.Geometry, error) {
	outer, err := parseCoords(p.Outer)
	if err != nil {
		return nil, err
	}
	if len(outer) < 4 {
		return nil, fmt.Errorf("polygon ring has %d coordinates", len(outer))
	}
	poly := orb.Polygon{orb.Ring(outer)}
	for _, in := range p.Inner {
		ring, err := parseCoords(in)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(ring))
	}
	return poly, nil
}

// parseCoords parses whitespace separated "lon,lat[,alt]" tuples.
func parseCoords(s string) ([]orb.Point, error) {
	var pts []orb.Point
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad coordinate %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q: %w", parts[1], err)
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts, nil
}

// kmlColor converts an aabbggrr KML color into a CSS hex color and opacity.
func kmlColor(v string) (string, float64, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "#")
	if len(v) != 8 {
		return "", 0, false
	}
	alpha, err := strconv.ParseUint(v[0:2], 16, 8)
	if err != nil {
		return "", 0, false
	}
	if _, err := strconv.ParseUint(v[2:], 16, 32); err != nil {
		return "", 0, false
	}
	hex := "#" + v[6:8] + v[4:6] + v[2:4]
	return strings.ToLower(hex), float64(alpha) / 255, true
}
