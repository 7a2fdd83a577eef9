// Package service runs map sessions: it owns the map surface on a single
// event loop, drives overlay loading and ordering, and publishes changes.
package service

import "github.com/joeblew999/bikemap/internal/mapsurface"

// OverlayInfo is the menu view of one overlay.
type OverlayInfo struct {
	ID          string   `json:"id" doc:"Overlay identifier" example:"bikeLanes"`
	Name        string   `json:"name" doc:"Display name" example:"OSM Bike Lanes"`
	Kind        string   `json:"kind" enum:"line,symbol,heatmap,boundary,districts" doc:"Overlay variant"`
	State       string   `json:"state" enum:"pending,fetching,waiting,ready,failed" doc:"Load progress"`
	Visible     bool     `json:"visible" doc:"Whether the overlay's layers are shown"`
	Attribution string   `json:"attribution,omitempty" doc:"Data attribution (HTML)"`
	Legend      string   `json:"legend,omitempty" doc:"SVG legend icon, line overlays only"`
	Layers      []string `json:"layers,omitempty" doc:"Layers created, bottom-to-top" example:"[\"bikeLanes\"]"`
	Error       string   `json:"error,omitempty" doc:"Failure reason of a failed overlay"`
}

// StackInfo describes the map's layer stack.
type StackInfo struct {
	Layers   []mapsurface.LayerRef `json:"layers" doc:"Style layers, bottom-to-top"`
	Anchor   string                `json:"anchor" doc:"First symbol layer of the base style; empty inserts at the top"`
	Applied  bool                  `json:"applied" doc:"Whether the render order has been applied"`
	Pending  []string              `json:"pending,omitempty" doc:"Render-order overlays the coordinator is waiting for"`
	Excluded []string              `json:"excluded,omitempty" doc:"Render-order overlays dropped after the render timeout"`
}

// SourceFile is a data file available to overlays.
type SourceFile struct {
	Name     string `json:"name" doc:"Path relative to the data directory" example:"overlays/schools.geojson" card:"title"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB" card:"meta"`
	Modified string `json:"modified" doc:"Relative modification time" example:"3 days ago" card:"meta"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON" card:"badge"`
}
