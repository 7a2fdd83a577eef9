package mapsurface

import (
	"fmt"
	"image"
	"slices"
)

// Map is an in-memory Surface backed by a style document. It is not safe for
// concurrent use; callers serialize access (see service.Loop).
type Map struct {
	base    Document
	sources map[string]Source
	layers  []Layer
	images  map[string]image.Image
	loaded  bool
	onLoad  []func()
}

var _ Surface = (*Map)(nil)

// New creates an empty, not yet loaded map.
func New() *Map {
	return &Map{
		sources: make(map[string]Source),
		images:  make(map[string]image.Image),
	}
}

// Load installs the base style and fires the load callbacks. A map loads once.
func (m *Map) Load(doc *Document) error {
	if m.loaded {
		return ErrStyleLoaded
	}
	m.base = *doc
	for id, src := range doc.Sources {
		m.sources[id] = src
	}
	for _, l := range doc.Layers {
		m.layers = append(m.layers, l.clone())
	}
	m.loaded = true

	callbacks := m.onLoad
	m.onLoad = nil
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Loaded reports whether the base style has been installed.
func (m *Map) Loaded() bool {
	return m.loaded
}

// OnLoad registers fn to run once the base style is loaded. If the style is
// already loaded fn runs immediately.
func (m *Map) OnLoad(fn func()) {
	if m.loaded {
		fn()
		return
	}
	m.onLoad = append(m.onLoad, fn)
}

// AddSource registers a named data source.
func (m *Map) AddSource(id string, src Source) error {
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	m.sources[id] = src
	return nil
}

// AddLayer inserts layer immediately below beforeID, or at the top when
// beforeID is empty.
func (m *Map) AddLayer(layer Layer, beforeID string) error {
	if layer.ID == "" {
		return fmt.Errorf("%w: empty id", ErrLayerNotFound)
	}
	if m.index(layer.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrLayerExists, layer.ID)
	}
	if layer.Type != TypeBackground {
		if _, ok := m.sources[layer.Source]; !ok {
			return fmt.Errorf("%w: %s (layer %s)", ErrSourceNotFound, layer.Source, layer.ID)
		}
	}
	at := len(m.layers)
	if beforeID != "" {
		if at = m.index(beforeID); at < 0 {
			return fmt.Errorf("%w: %s", ErrLayerNotFound, beforeID)
		}
	}
	m.layers = slices.Insert(m.layers, at, layer.clone())
	return nil
}

// MoveLayer relocates id to sit immediately below beforeID, or at the top
// when beforeID is empty.
func (m *Map) MoveLayer(id, beforeID string) error {
	from := m.index(id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if id == beforeID {
		return nil
	}
	if beforeID != "" && m.index(beforeID) < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, beforeID)
	}
	l := m.layers[from]
	m.layers = slices.Delete(m.layers, from, from+1)
	to := len(m.layers)
	if beforeID != "" {
		to = m.index(beforeID)
	}
	m.layers = slices.Insert(m.layers, to, l)
	return nil
}

// SetLayoutProperty sets a layout key on a layer.
func (m *Map) SetLayoutProperty(id, key string, value any) error {
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if m.layers[i].Layout == nil {
		m.layers[i].Layout = make(map[string]any)
	}
	m.layers[i].Layout[key] = value
	return nil
}

// GetLayoutProperty returns a layout key of a layer.
func (m *Map) GetLayoutProperty(id, key string) (any, bool) {
	i := m.index(id)
	if i < 0 {
		return nil, false
	}
	v, ok := m.layers[i].Layout[key]
	return v, ok
}

// SetPaintProperty sets a paint key on a layer.
func (m *Map) SetPaintProperty(id, key string, value any) error {
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if m.layers[i].Paint == nil {
		m.layers[i].Paint = make(map[string]any)
	}
	m.layers[i].Paint[key] = value
	return nil
}

// AddImage registers an icon image under name.
func (m *Map) AddImage(name string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("image %s: nil image", name)
	}
	m.images[name] = img
	return nil
}

// Image returns a registered image.
func (m *Map) Image(name string) (image.Image, bool) {
	img, ok := m.images[name]
	return img, ok
}

// StyleLayers returns the current stack bottom-to-top.
func (m *Map) StyleLayers() []LayerRef {
	refs := make([]LayerRef, len(m.layers))
	for i, l := range m.layers {
		refs[i] = LayerRef{ID: l.ID, Type: l.Type}
	}
	return refs
}

// Layer returns a copy of a layer.
func (m *Map) Layer(id string) (Layer, bool) {
	i := m.index(id)
	if i < 0 {
		return Layer{}, false
	}
	return m.layers[i].clone(), true
}

// Document returns the composed style: base metadata, every source and every
// layer in current stack order.
func (m *Map) Document() (Document, error) {
	if !m.loaded {
		return Document{}, ErrStyleNotLoaded
	}
	doc := m.base
	doc.Sources = make(map[string]Source, len(m.sources))
	for id, src := range m.sources {
		doc.Sources[id] = src
	}
	doc.Layers = make([]Layer, len(m.layers))
	for i, l := range m.layers {
		doc.Layers[i] = l.clone()
	}
	return doc, nil
}

func (m *Map) index(id string) int {
	return slices.IndexFunc(m.layers, func(l Layer) bool { return l.ID == id })
}
