// Package stack keeps overlay layers in a deterministic stacking order.
//
// Overlays finish loading in any order. Each one inserts its layers below the
// anchor (the first label layer of the base style) and then calls TrySort.
// TrySort does nothing until every participant in the render order is ready;
// from then on it walks the target order from the top down and moves each
// layer directly below its successor, which makes the pass idempotent.
package stack

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Participant is an overlay as seen by the coordinator.
type Participant interface {
	ID() string
	AddedLayerIDs() []string
}

// Result describes one TrySort call.
type Result struct {
	Applied bool
	Moves   int
}

// Context carries the shared session state: the map surface, the resolved
// anchor and the fixed render order. It is built once and must only be used
// from the goroutine that owns the map.
type Context struct {
	Map mapsurface.Surface

	order    []Participant
	anchor   string
	resolved bool
	excluded map[string]bool
	applied  bool
	log      *log.Logger
}

// NewContext creates a context over m with the given bottom-to-top render order.
func NewContext(m mapsurface.Surface, order []Participant, logger *log.Logger) *Context {
	if logger == nil {
		logger = log.Default()
	}
	return &Context{
		Map:      m,
		order:    order,
		excluded: make(map[string]bool),
		log:      logger.WithPrefix("stack"),
	}
}

// ResolveAnchor scans the base style once and records the first symbol layer.
// Later calls return the value found the first time.
func (c *Context) ResolveAnchor() (string, bool) {
	if !c.resolved {
		c.resolved = true
		for _, l := range c.Map.StyleLayers() {
			if l.Type == mapsurface.TypeSymbol {
				c.anchor = l.ID
				break
			}
		}
		if c.anchor == "" {
			c.log.Warn("no symbol layer in base style, overlays go on top")
		} else {
			c.log.Debug("anchor resolved", "layer", c.anchor)
		}
	}
	return c.anchor, c.anchor != ""
}

// Anchor returns the anchor layer id, or "" when none exists (insert at top).
func (c *Context) Anchor() string {
	return c.anchor
}

// Order returns the render order participants.
func (c *Context) Order() []Participant {
	return c.order
}

// Applied reports whether a pass has realized the target order.
func (c *Context) Applied() bool {
	return c.applied
}

// Exclude drops participants from the readiness guard and the target order.
func (c *Context) Exclude(ids ...string) {
	for _, id := range ids {
		c.excluded[id] = true
	}
}

// Excluded reports whether id was dropped from the participant set.
func (c *Context) Excluded(id string) bool {
	return c.excluded[id]
}

// Pending returns the ids of participants that are neither ready nor excluded.
func (c *Context) Pending() []string {
	var ids []string
	for _, p := range c.order {
		if !c.excluded[p.ID()] && len(p.AddedLayerIDs()) == 0 {
			ids = append(ids, p.ID())
		}
	}
	return ids
}

// Target returns the flattened bottom-to-top layer order of the participants,
// without the anchor.
func (c *Context) Target() []string {
	var target []string
	for _, p := range c.order {
		if c.excluded[p.ID()] {
			continue
		}
		target = append(target, p.AddedLayerIDs()...)
	}
	return target
}

// TrySort realizes the target order if every participant is ready. Once a
// pass has applied with participants excluded, the order is final: excluded
// overlays that arrive later keep the position they were inserted at.
func (c *Context) TrySort() (Result, error) {
	if c.applied && len(c.excluded) > 0 {
		return Result{Applied: true}, nil
	}
	if len(c.Pending()) > 0 {
		return Result{}, nil
	}
	target := append(c.Target(), c.anchor)

	var res Result
	for i := len(target) - 2; i >= 0; i-- {
		if c.adjacent(target[i], target[i+1]) {
			continue
		}
		if err := c.Map.MoveLayer(target[i], target[i+1]); err != nil {
			return res, fmt.Errorf("moving %s below %q: %w", target[i], target[i+1], err)
		}
		res.Moves++
	}
	res.Applied = true
	if !c.applied || res.Moves > 0 {
		c.log.Info("render order applied", "layers", len(target)-1, "moves", res.Moves)
	}
	c.applied = true
	return res, nil
}

// adjacent reports whether id already sits directly below next (or on top of
// the stack when next is empty).
func (c *Context) adjacent(id, next string) bool {
	layers := c.Map.StyleLayers()
	for i, l := range layers {
		if l.ID != id {
			continue
		}
		if next == "" {
			return i == len(layers)-1
		}
		return i+1 < len(layers) && layers[i+1].ID == next
	}
	return false
}
