package mapsurface

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is a style document: the base map a session starts from, and the
// composed map served to viewers.
type Document struct {
	Version int               `json:"version" yaml:"version"`
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Center  []float64         `json:"center,omitempty" yaml:"center,omitempty"`
	Zoom    float64           `json:"zoom,omitempty" yaml:"zoom,omitempty"`
	Sprite  string            `json:"sprite,omitempty" yaml:"sprite,omitempty"`
	Glyphs  string            `json:"glyphs,omitempty" yaml:"glyphs,omitempty"`
	Sources map[string]Source `json:"sources" yaml:"sources"`
	Layers  []Layer           `json:"layers" yaml:"layers"`
}

// ParseDocument decodes a style document. YAML is a superset of JSON, so both
// encodings are accepted.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing style: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = 8
	}
	seen := make(map[string]bool, len(doc.Layers))
	for i, l := range doc.Layers {
		if l.ID == "" {
			return nil, fmt.Errorf("parsing style: layer %d has no id", i)
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("parsing style: %w: %s", ErrLayerExists, l.ID)
		}
		seen[l.ID] = true
	}
	return &doc, nil
}
