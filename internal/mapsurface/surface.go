// Package mapsurface models the drawable map that overlays render into: an
// ordered stack of style layers over named data sources.
//
// The stack is bottom-to-top. Insertion "before" a layer places the new layer
// immediately below it; an empty before id means the top of the stack.
package mapsurface

import (
	"errors"
	"image"

	"github.com/paulmach/orb/geojson"
)

// Layer types understood by the surface.
const (
	TypeBackground = "background"
	TypeFill       = "fill"
	TypeLine       = "line"
	TypeSymbol     = "symbol"
	TypeCircle     = "circle"
	TypeHeatmap    = "heatmap"
	TypeRaster     = "raster"
)

// Visibility values for the "visibility" layout property.
const (
	Visible = "visible"
	Hidden  = "none"
)

// PropVisibility is the layout key that carries a layer's visibility.
const PropVisibility = "visibility"

var (
	ErrLayerExists    = errors.New("layer already exists")
	ErrLayerNotFound  = errors.New("layer not found")
	ErrSourceExists   = errors.New("source already exists")
	ErrSourceNotFound = errors.New("source not found")
	ErrStyleNotLoaded = errors.New("style is not loaded")
	ErrStyleLoaded    = errors.New("style already loaded")
)

// Surface is the rendering engine as seen by overlays and the stacking
// coordinator.
type Surface interface {
	AddSource(id string, src Source) error
	AddLayer(layer Layer, beforeID string) error
	MoveLayer(id, beforeID string) error
	SetLayoutProperty(id, key string, value any) error
	GetLayoutProperty(id, key string) (any, bool)
	SetPaintProperty(id, key string, value any) error
	AddImage(name string, img image.Image) error
	StyleLayers() []LayerRef
	OnLoad(fn func())
}

// LayerRef identifies a layer in the stack together with its kind.
type LayerRef struct {
	ID   string `json:"id" doc:"Layer identifier" example:"road-label"`
	Type string `json:"type" doc:"Layer type" example:"symbol"`
}

// Source is a named data source. Overlay sources are GeoJSON with inline data;
// base style sources usually point at vector tiles.
type Source struct {
	Type        string                     `json:"type" yaml:"type"`
	URL         string                     `json:"url,omitempty" yaml:"url,omitempty"`
	Tiles       []string                   `json:"tiles,omitempty" yaml:"tiles,omitempty"`
	TileSize    int                        `json:"tileSize,omitempty" yaml:"tileSize,omitempty"`
	MaxZoom     float64                    `json:"maxzoom,omitempty" yaml:"maxzoom,omitempty"`
	Data        *geojson.FeatureCollection `json:"data,omitempty" yaml:"-"`
	Attribution string                     `json:"attribution,omitempty" yaml:"attribution,omitempty"`
}

// GeoJSONSource returns an inline GeoJSON source.
func GeoJSONSource(fc *geojson.FeatureCollection, attribution string) Source {
	return Source{Type: "geojson", Data: fc, Attribution: attribution}
}

// Layer is one drawable style layer.
type Layer struct {
	ID          string         `json:"id" yaml:"id"`
	Type        string         `json:"type" yaml:"type"`
	Source      string         `json:"source,omitempty" yaml:"source,omitempty"`
	SourceLayer string         `json:"source-layer,omitempty" yaml:"source-layer,omitempty"`
	MinZoom     float64        `json:"minzoom,omitempty" yaml:"minzoom,omitempty"`
	MaxZoom     float64        `json:"maxzoom,omitempty" yaml:"maxzoom,omitempty"`
	Filter      any            `json:"filter,omitempty" yaml:"filter,omitempty"`
	Layout      map[string]any `json:"layout,omitempty" yaml:"layout,omitempty"`
	Paint       map[string]any `json:"paint,omitempty" yaml:"paint,omitempty"`
}

func (l Layer) clone() Layer {
	c := l
	c.Layout = cloneProps(l.Layout)
	c.Paint = cloneProps(l.Paint)
	return c
}

func cloneProps(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	c := make(map[string]any, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
