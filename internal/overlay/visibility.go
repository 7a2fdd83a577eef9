package overlay

import (
	"errors"

	"github.com/joeblew999/bikemap/internal/mapsurface"
)

// ErrNotReady is returned for operations on an overlay without layers.
var ErrNotReady = errors.New("overlay is not ready")

// Visibility reads the overlay's visibility from its first layer. Every layer
// of an overlay shares the same value. Unset counts as visible.
func Visibility(m mapsurface.Surface, o Overlay) (string, error) {
	ids := o.AddedLayerIDs()
	if len(ids) == 0 {
		return "", ErrNotReady
	}
	if v, ok := m.GetLayoutProperty(ids[0], mapsurface.PropVisibility); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}
	return mapsurface.Visible, nil
}

// ToggleVisibility flips the overlay between visible and hidden and returns
// the new value.
func ToggleVisibility(m mapsurface.Surface, o Overlay) (string, error) {
	current, err := Visibility(m, o)
	if err != nil {
		return "", err
	}
	next := mapsurface.Hidden
	if current != mapsurface.Visible {
		next = mapsurface.Visible
	}
	for _, id := range o.AddedLayerIDs() {
		if err := m.SetLayoutProperty(id, mapsurface.PropVisibility, next); err != nil {
			return "", err
		}
	}
	return next, nil
}
