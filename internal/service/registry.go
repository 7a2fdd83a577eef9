package service

import (
	"errors"
	"fmt"

	"github.com/joeblew999/bikemap/internal/config"
	"github.com/joeblew999/bikemap/internal/overlay"
	"github.com/joeblew999/bikemap/internal/stack"
)

// ErrUnknownOverlay is returned for ids missing from the catalog.
var ErrUnknownOverlay = errors.New("unknown overlay")

// ErrNotReady is returned when an overlay has no layers yet.
var ErrNotReady = overlay.ErrNotReady

// Registry holds a session's overlays in the catalog's three orders.
type Registry struct {
	all    []overlay.Overlay
	render []overlay.Overlay
	menu   []overlay.Overlay
	byID   map[string]overlay.Overlay
}

// NewRegistry constructs one overlay per catalog entry.
func NewRegistry(c *config.Catalog) (*Registry, error) {
	r := &Registry{byID: make(map[string]overlay.Overlay, len(c.Overlays))}
	for _, spec := range c.Overlays {
		o, err := overlay.New(spec)
		if err != nil {
			return nil, err
		}
		r.all = append(r.all, o)
		r.byID[spec.ID] = o
	}
	var err error
	if r.render, err = r.lookup(c.RenderOrder); err != nil {
		return nil, fmt.Errorf("render order: %w", err)
	}
	if r.menu, err = r.lookup(c.MenuOrder); err != nil {
		return nil, fmt.Errorf("menu order: %w", err)
	}
	return r, nil
}

func (r *Registry) lookup(ids []string) ([]overlay.Overlay, error) {
	out := make([]overlay.Overlay, 0, len(ids))
	for _, id := range ids {
		o, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOverlay, id)
		}
		out = append(out, o)
	}
	return out, nil
}

// All returns every overlay in catalog order.
func (r *Registry) All() []overlay.Overlay { return r.all }

// RenderOrder returns the ordering participants, bottom-to-top.
func (r *Registry) RenderOrder() []overlay.Overlay { return r.render }

// MenuOrder returns the overlays shown in the menu.
func (r *Registry) MenuOrder() []overlay.Overlay { return r.menu }

// Get returns the overlay with the given id.
func (r *Registry) Get(id string) (overlay.Overlay, error) {
	o, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOverlay, id)
	}
	return o, nil
}

// participants adapts the render order to the coordinator.
func (r *Registry) participants() []stack.Participant {
	ps := make([]stack.Participant, len(r.render))
	for i, o := range r.render {
		ps[i] = o
	}
	return ps
}
