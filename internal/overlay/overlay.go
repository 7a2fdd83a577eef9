// Package overlay loads geographic datasets and renders each one as one or
// more layers on a shared map.
//
// Every variant follows the same life: Run fetches and parses the data off the
// map goroutine, waits for the base style to load, then adds its sources and
// layers, records the layer ids and calls the stack coordinator. Variants only
// differ in the layers they build.
package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/bikemap/internal/kml"
	"github.com/joeblew999/bikemap/internal/mapsurface"
	"github.com/joeblew999/bikemap/internal/stack"
)

// Overlay is one togglable dataset on the map.
type Overlay interface {
	ID() string
	Spec() Spec
	Run(ctx context.Context, env *Env)
	IsReady() bool
	AddedLayerIDs() []string
	State() State
	Err() error
	Legend() string
}

// State is the progress of an overlay through its single load.
type State int32

const (
	Pending  State = iota // constructed, not yet run
	Fetching              // data requests in flight
	Waiting               // data parsed, waiting for the map or an icon
	Ready                 // layers added
	Failed                // gave up; never becomes ready
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Env is what an overlay needs from the session. Post and everything reached
// through Stack belong to the map goroutine.
type Env struct {
	Fetcher Fetcher
	Stack   *stack.Context
	Post    func(func())
	Done    func(id string, err error)
	Log     *log.Logger
}

func (env *Env) logger() *log.Logger {
	if env.Log == nil {
		return log.Default()
	}
	return env.Log
}

// buildFunc adds a variant's sources and layers. It runs on the map goroutine
// and must call done exactly once, possibly later from another Post.
type buildFunc func(ctx context.Context, env *Env, data []*geojson.FeatureCollection, done func(ids []string, err error))

// Base implements the shared lifecycle. Variants embed it and supply build.
type Base struct {
	spec  Spec
	build buildFunc
	state atomic.Int32
	added []string

	mu  sync.Mutex
	err error
}

func newBase(spec Spec, build buildFunc) *Base {
	return &Base{spec: spec, build: build}
}

// New constructs the variant named by spec.Kind.
func New(spec Spec) (Overlay, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case KindLine:
		return NewLine(spec), nil
	case KindSymbol:
		return NewSymbol(spec), nil
	case KindHeatmap:
		return NewHeatmap(spec), nil
	case KindBoundary:
		return NewBoundary(spec), nil
	case KindDistricts:
		return NewDistricts(spec), nil
	}
	return nil, fmt.Errorf("overlay %s: unknown kind %q", spec.ID, spec.Kind)
}

func (b *Base) ID() string     { return b.spec.ID }
func (b *Base) Spec() Spec     { return b.spec }
func (b *Base) State() State   { return State(b.state.Load()) }
func (b *Base) IsReady() bool  { return b.State() == Ready }
func (b *Base) Legend() string { return "" }

// AddedLayerIDs returns the layers this overlay created, bottom-to-top.
// Empty until ready. Map goroutine only.
func (b *Base) AddedLayerIDs() []string {
	return b.added
}

// Err returns the failure reason of a failed overlay.
func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Run starts the overlay's fetch. It returns immediately; a second call is a
// no-op.
func (b *Base) Run(ctx context.Context, env *Env) {
	if !b.state.CompareAndSwap(int32(Pending), int32(Fetching)) {
		return
	}
	go func() {
		data, err := b.fetch(ctx, env.Fetcher)
		if err != nil {
			env.Post(func() { b.fail(env, err) })
			return
		}
		b.state.Store(int32(Waiting))
		env.Post(func() {
			env.Stack.Map.OnLoad(func() {
				b.build(ctx, env, data, func(ids []string, err error) {
					b.finish(env, ids, err)
				})
			})
		})
	}()
}

func (b *Base) fetch(ctx context.Context, f Fetcher) ([]*geojson.FeatureCollection, error) {
	data := make([]*geojson.FeatureCollection, len(b.spec.Data))
	g, ctx := errgroup.WithContext(ctx)
	for i, location := range b.spec.Data {
		g.Go(func() error {
			body, err := f.Fetch(ctx, location)
			if err != nil {
				return err
			}
			fc, err := decode(b.spec.Format, body)
			if err != nil {
				return &ParseError{Overlay: b.spec.ID, Location: location, Err: err}
			}
			data[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func decode(format Format, body []byte) (*geojson.FeatureCollection, error) {
	switch format {
	case FormatKML:
		return kml.Convert(bytes.NewReader(body))
	case FormatGeoJSON, "":
		return geojson.UnmarshalFeatureCollection(body)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// finish records the created layers and triggers the coordinator. Readiness
// is set once and never revised.
func (b *Base) finish(env *Env, ids []string, err error) {
	if err == nil && len(ids) == 0 {
		err = errors.New("no layers created")
	}
	if err != nil {
		b.fail(env, err)
		return
	}
	if len(b.added) > 0 {
		return
	}
	b.added = slices.Clone(ids)
	b.state.Store(int32(Ready))
	env.logger().Debug("overlay ready", "overlay", b.spec.ID, "layers", b.added)

	if _, err := env.Stack.TrySort(); err != nil {
		env.logger().Error("render order failed", "overlay", b.spec.ID, "err", err)
	}
	if env.Done != nil {
		env.Done(b.spec.ID, nil)
	}
}

func (b *Base) fail(env *Env, err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.state.Store(int32(Failed))
	env.logger().Error("overlay failed", "overlay", b.spec.ID, "err", err)
	if env.Done != nil {
		env.Done(b.spec.ID, err)
	}
}

// addSource registers an inline GeoJSON source.
func addSource(m mapsurface.Surface, id string, fc *geojson.FeatureCollection, attribution string) error {
	if err := m.AddSource(id, mapsurface.GeoJSONSource(fc, attribution)); err != nil {
		return fmt.Errorf("adding source: %w", err)
	}
	return nil
}
