// Package config loads the overlay catalog: which overlays exist, how they
// are drawn, and in which order they render and appear in the menu.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/bikemap/internal/overlay"
)

//go:embed default.yaml
var defaultCatalog []byte

//go:embed basestyle.yaml
var defaultBaseStyle []byte

// Catalog is the static overlay configuration of a map session.
type Catalog struct {
	// BaseStyle locates the base style document. Empty uses the embedded style.
	BaseStyle string `yaml:"base_style,omitempty" json:"baseStyle,omitempty"`
	// RenderTimeout bounds the wait for render-order overlays. Zero waits forever.
	RenderTimeout time.Duration `yaml:"render_timeout,omitempty" json:"renderTimeout,omitempty"`

	Overlays    []overlay.Spec `yaml:"overlays" json:"overlays"`
	RenderOrder []string       `yaml:"render_order" json:"renderOrder"` // bottom-to-top
	MenuOrder   []string       `yaml:"menu_order" json:"menuOrder"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the embedded San Diego catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// DefaultBaseStyle returns the embedded base style document.
func DefaultBaseStyle() []byte {
	return slices.Clone(defaultBaseStyle)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every overlay and that the order lists only name known
// overlays, each at most once.
func (c *Catalog) Validate() error {
	if c.RenderTimeout < 0 {
		return errors.New("render_timeout must not be negative")
	}
	seen := make(map[string]bool, len(c.Overlays))
	for _, s := range c.Overlays {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate overlay id %q", s.ID)
		}
		seen[s.ID] = true
	}
	if err := checkOrder("render_order", c.RenderOrder, seen); err != nil {
		return err
	}
	return checkOrder("menu_order", c.MenuOrder, seen)
}

func checkOrder(name string, ids []string, known map[string]bool) error {
	listed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%s: unknown overlay %q", name, id)
		}
		if listed[id] {
			return fmt.Errorf("%s: overlay %q listed twice", name, id)
		}
		listed[id] = true
	}
	return nil
}

// Overlay returns the spec with the given id.
func (c *Catalog) Overlay(id string) (overlay.Spec, bool) {
	for _, s := range c.Overlays {
		if s.ID == id {
			return s, true
		}
	}
	return overlay.Spec{}, false
}
