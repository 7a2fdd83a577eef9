package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/bikemap/internal/config"
	"github.com/joeblew999/bikemap/internal/mapsurface"
	"github.com/joeblew999/bikemap/internal/overlay"
	"github.com/joeblew999/bikemap/internal/stack"
)

// MapService is one map session: a base style, the catalog's overlays and the
// coordinator that orders them. All map state lives on the session's Loop.
type MapService struct {
	catalog  *config.Catalog
	fetcher  overlay.Fetcher
	bus      *EventBus
	log      *log.Logger
	loop     *Loop
	registry *Registry
	m        *mapsurface.Map
	stack    *stack.Context

	// loop-owned
	remaining int
	ordered   bool

	startOnce sync.Once
	settled   chan struct{}
}

// NewMapService prepares a session. Nothing is fetched until Start.
func NewMapService(c *config.Catalog, f overlay.Fetcher, bus *EventBus, logger *log.Logger) (*MapService, error) {
	if logger == nil {
		logger = log.Default()
	}
	if bus == nil {
		bus = NewEventBus()
	}
	reg, err := NewRegistry(c)
	if err != nil {
		return nil, err
	}
	m := mapsurface.New()
	s := &MapService{
		catalog:   c,
		fetcher:   f,
		bus:       bus,
		log:       logger,
		loop:      NewLoop(),
		registry:  reg,
		m:         m,
		stack:     stack.NewContext(m, reg.participants(), logger),
		remaining: len(reg.All()),
		settled:   make(chan struct{}),
	}
	// Registered before any overlay can wait on the load, so the anchor is
	// known by the time the first one builds.
	m.OnLoad(func() {
		if anchor, ok := s.stack.ResolveAnchor(); ok {
			s.log.Debug("anchor resolved", "layer", anchor)
		} else {
			s.log.Warn("base style has no symbol layer, overlays insert at the top")
		}
	})
	if s.remaining == 0 {
		close(s.settled)
	}
	return s, nil
}

// Bus returns the session's event bus.
func (s *MapService) Bus() *EventBus { return s.bus }

// Registry returns the session's overlays.
func (s *MapService) Registry() *Registry { return s.registry }

// Settled is closed once every overlay is ready or failed.
func (s *MapService) Settled() <-chan struct{} { return s.settled }

// Start runs the loop, starts every overlay and loads the base style. The
// session lives until ctx is cancelled. Only the first call has an effect.
func (s *MapService) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() { err = s.start(ctx) })
	return err
}

func (s *MapService) start(ctx context.Context) error {
	go s.loop.Run(ctx)

	env := &overlay.Env{
		Fetcher: s.fetcher,
		Stack:   s.stack,
		Post:    s.loop.Post,
		Done:    s.overlayDone,
		Log:     s.log,
	}
	for _, o := range s.registry.All() {
		o.Run(ctx, env)
	}

	if t := s.catalog.RenderTimeout; t > 0 {
		timer := time.AfterFunc(t, func() { s.loop.Post(s.renderTimeout) })
		context.AfterFunc(ctx, func() { timer.Stop() })
	}

	doc, err := s.baseStyle(ctx)
	if err != nil {
		return err
	}
	var loadErr error
	if err := s.loop.Do(ctx, func() { loadErr = s.m.Load(doc) }); err != nil {
		return err
	}
	return loadErr
}

func (s *MapService) baseStyle(ctx context.Context) (*mapsurface.Document, error) {
	data := config.DefaultBaseStyle()
	if loc := s.catalog.BaseStyle; loc != "" {
		var err error
		if data, err = s.fetcher.Fetch(ctx, loc); err != nil {
			return nil, fmt.Errorf("base style: %w", err)
		}
	}
	doc, err := mapsurface.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("base style: %w", err)
	}
	return doc, nil
}

// overlayDone runs on the loop after an overlay became ready or failed.
func (s *MapService) overlayDone(id string, err error) {
	e := Event{Resource: ResourceOverlay, Action: ActionReady, ID: id}
	if err != nil {
		e.Action, e.Detail = ActionFailed, err.Error()
	}
	s.bus.Publish(e)
	s.publishOrdered()

	s.remaining--
	if s.remaining == 0 {
		s.log.Info("overlays settled", "overlays", len(s.registry.All()))
		close(s.settled)
	}
}

// renderTimeout drops render-order overlays that are still loading so the
// rest can be ordered.
func (s *MapService) renderTimeout() {
	if s.stack.Applied() {
		return
	}
	pending := s.stack.Pending()
	if len(pending) == 0 {
		return
	}
	s.log.Warn("render timeout, ordering without", "overlays", pending)
	s.stack.Exclude(pending...)
	if !s.m.Loaded() {
		return
	}
	if _, err := s.stack.TrySort(); err != nil {
		s.log.Error("render order failed", "err", err)
		return
	}
	s.publishOrdered()
}

func (s *MapService) publishOrdered() {
	if s.ordered || !s.stack.Applied() {
		return
	}
	s.ordered = true
	s.bus.Publish(Event{Resource: ResourceMap, Action: ActionOrdered})
}

// Overlays describes the menu overlays in menu order.
func (s *MapService) Overlays(ctx context.Context) ([]OverlayInfo, error) {
	var out []OverlayInfo
	err := s.loop.Do(ctx, func() {
		for _, o := range s.registry.MenuOrder() {
			out = append(out, s.info(o))
		}
	})
	return out, err
}

// Overlay describes any catalog overlay.
func (s *MapService) Overlay(ctx context.Context, id string) (OverlayInfo, error) {
	o, err := s.registry.Get(id)
	if err != nil {
		return OverlayInfo{}, err
	}
	var info OverlayInfo
	err = s.loop.Do(ctx, func() { info = s.info(o) })
	return info, err
}

func (s *MapService) info(o overlay.Overlay) OverlayInfo {
	spec := o.Spec()
	info := OverlayInfo{
		ID:          spec.ID,
		Name:        spec.Name,
		Kind:        string(spec.Kind),
		State:       o.State().String(),
		Attribution: spec.Attribution,
		Legend:      o.Legend(),
		Layers:      o.AddedLayerIDs(),
		Visible:     spec.DefaultVisibility() == mapsurface.Visible,
	}
	if v, err := overlay.Visibility(s.m, o); err == nil {
		info.Visible = v == mapsurface.Visible
	}
	if err := o.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// Toggle flips an overlay's visibility and returns its new description.
func (s *MapService) Toggle(ctx context.Context, id string) (OverlayInfo, error) {
	o, err := s.registry.Get(id)
	if err != nil {
		return OverlayInfo{}, err
	}
	var (
		info      OverlayInfo
		toggleErr error
	)
	err = s.loop.Do(ctx, func() {
		v, err := overlay.ToggleVisibility(s.m, o)
		if err != nil {
			toggleErr = err
			return
		}
		s.log.Debug("visibility toggled", "overlay", id, "visibility", v)
		s.bus.Publish(Event{Resource: ResourceOverlay, Action: ActionVisibility, ID: id, Detail: v})
		info = s.info(o)
	})
	if err != nil {
		return OverlayInfo{}, err
	}
	if toggleErr != nil {
		if errors.Is(toggleErr, overlay.ErrNotReady) {
			return OverlayInfo{}, fmt.Errorf("%s: %w", id, ErrNotReady)
		}
		return OverlayInfo{}, toggleErr
	}
	return info, nil
}

// Style returns the current composed style document.
func (s *MapService) Style(ctx context.Context) (mapsurface.Document, error) {
	var (
		doc    mapsurface.Document
		docErr error
	)
	if err := s.loop.Do(ctx, func() { doc, docErr = s.m.Document() }); err != nil {
		return mapsurface.Document{}, err
	}
	return doc, docErr
}

// Stack returns the layer stack and the coordinator's progress.
func (s *MapService) Stack(ctx context.Context) (StackInfo, error) {
	var info StackInfo
	err := s.loop.Do(ctx, func() {
		info = StackInfo{
			Layers:  s.m.StyleLayers(),
			Anchor:  s.stack.Anchor(),
			Applied: s.stack.Applied(),
			Pending: s.stack.Pending(),
		}
		for _, p := range s.stack.Order() {
			if s.stack.Excluded(p.ID()) {
				info.Excluded = append(info.Excluded, p.ID())
			}
		}
	})
	return info, err
}

// Image returns a registered marker image.
func (s *MapService) Image(ctx context.Context, name string) (image.Image, bool, error) {
	var (
		img image.Image
		ok  bool
	)
	err := s.loop.Do(ctx, func() { img, ok = s.m.Image(name) })
	return img, ok, err
}
