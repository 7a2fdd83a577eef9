package overlay

import (
	"fmt"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// Kind selects the overlay variant.
type Kind string

const (
	KindLine      Kind = "line"
	KindSymbol    Kind = "symbol"
	KindHeatmap   Kind = "heatmap"
	KindBoundary  Kind = "boundary"
	KindDistricts Kind = "districts"
)

// Format is the encoding of an overlay's data files.
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatKML     Format = "kml"
)

// Spec is the static configuration of one overlay.
type Spec struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Data        []string `yaml:"data" json:"data"`
	Format      Format   `yaml:"format,omitempty" json:"format,omitempty"`
	Attribution string   `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Visibility  string   `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Options     Options  `yaml:"options,omitempty" json:"options,omitempty"`
}

// DefaultVisibility returns the visibility applied to every created layer.
func (s Spec) DefaultVisibility() string {
	if s.Visibility == "" {
		return mapsurface.Visible
	}
	return s.Visibility
}

// Validate checks the fields every variant relies on.
func (s Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("overlay %q: missing id", s.Name)
	}
	switch s.Format {
	case "", FormatGeoJSON, FormatKML:
	default:
		return fmt.Errorf("overlay %s: unknown format %q", s.ID, s.Format)
	}
	switch s.Visibility {
	case "", mapsurface.Visible, mapsurface.Hidden:
	default:
		return fmt.Errorf("overlay %s: visibility must be %q or %q", s.ID, mapsurface.Visible, mapsurface.Hidden)
	}
	want := 1
	switch s.Kind {
	case KindLine, KindSymbol, KindHeatmap, KindBoundary:
	case KindDistricts:
		want = 2
	default:
		return fmt.Errorf("overlay %s: unknown kind %q", s.ID, s.Kind)
	}
	if len(s.Data) != want {
		return fmt.Errorf("overlay %s: %s needs %d data location(s), got %d", s.ID, s.Kind, want, len(s.Data))
	}
	if s.Kind == KindSymbol && s.Options.String("marker-url", "") == "" {
		return fmt.Errorf("overlay %s: symbol needs a marker-url option", s.ID)
	}
	return nil
}

// Options holds paint and layout values. Missing, empty or zero values fall
// back to the variant's default.
type Options map[string]any

// Value returns the option or def when unset.
func (o Options) Value(key string, def any) any {
	v, ok := o[key]
	if !ok || isZero(v) {
		return def
	}
	return v
}

// String returns a string option or def.
func (o Options) String(key, def string) string {
	if s, ok := o.Value(key, def).(string); ok {
		return s
	}
	return def
}

// Float returns a numeric option or def.
func (o Options) Float(key string, def float64) float64 {
	switch n := o.Value(key, def).(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

func isZero(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case int:
		return x == 0
	case float64:
		return x == 0
	case bool:
		return !x
	}
	return false
}
