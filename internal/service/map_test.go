package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/bikemap/internal/config"
	"github.com/joeblew999/bikemap/internal/mapsurface"
	"github.com/joeblew999/bikemap/internal/overlay"
)

const (
	lines  = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
	points = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"Point","coordinates":[0,0]}}]}`
	county = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`
)

// testFetcher serves fixed payloads. Locations in block wait for ctx.
type testFetcher struct {
	data  map[string][]byte
	block map[string]bool
	// hold delays a location until its channel is closed
	hold map[string]chan struct{}
}

func (f *testFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if f.block[location] {
		<-ctx.Done()
		return nil, &overlay.FetchError{Location: location, Err: ctx.Err()}
	}
	if ch, ok := f.hold[location]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, &overlay.FetchError{Location: location, Err: ctx.Err()}
		}
	}
	b, ok := f.data[location]
	if !ok {
		return nil, &overlay.FetchError{Location: location, Err: errors.New("not found")}
	}
	return b, nil
}

func newFetcher(t *testing.T) *testFetcher {
	t.Helper()
	var icon bytes.Buffer
	if err := png.Encode(&icon, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return &testFetcher{data: map[string][]byte{
		"bike.geojson":    []byte(lines),
		"county.geojson":  []byte(county),
		"crashes.geojson": []byte(points),
		"schools.geojson": []byte(points),
		"college.png":     icon.Bytes(),
	}}
}

func testCatalog() *config.Catalog {
	return &config.Catalog{
		Overlays: []overlay.Spec{
			{ID: "bikeLanes", Name: "Bike Lanes", Kind: overlay.KindLine, Data: []string{"bike.geojson"},
				Options: overlay.Options{"line-color": "#22f", "line-width": 3}},
			{ID: "countyBoundary", Kind: overlay.KindBoundary, Data: []string{"county.geojson"}},
			{ID: "crashes", Kind: overlay.KindHeatmap, Data: []string{"crashes.geojson"}, Visibility: mapsurface.Hidden},
			{ID: "schools", Kind: overlay.KindSymbol, Data: []string{"schools.geojson"},
				Options: overlay.Options{"marker-url": "college.png"}},
		},
		RenderOrder: []string{"countyBoundary", "crashes", "bikeLanes"},
		MenuOrder:   []string{"bikeLanes", "schools", "crashes"},
	}
}

func startSession(t *testing.T, c *config.Catalog, f overlay.Fetcher) (*MapService, <-chan Event) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := NewMapService(c, f, nil, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewMapService: %v", err)
	}
	events := s.Bus().Subscribe(ctx)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, events
}

func waitSettled(t *testing.T, s *MapService) {
	t.Helper()
	select {
	case <-s.Settled():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not settle")
	}
}

func layerIDs(info StackInfo) []string {
	ids := make([]string, len(info.Layers))
	for i, l := range info.Layers {
		ids[i] = l.ID
	}
	return ids
}

func TestSessionRenderOrder(t *testing.T) {
	s, events := startSession(t, testCatalog(), newFetcher(t))
	waitSettled(t, s)

	info, err := s.Stack(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"background", "park", "water", "building", "road-minor", "road-major",
		"countyBoundary-outline", "countyBoundary-shaded", "crashes-heatmap", "crashes-points", "bikeLanes",
		"road-label", "place-label", "schools",
	}
	if got := layerIDs(info); !slices.Equal(got, want) {
		t.Fatalf("stack =\n%v\nwant\n%v", got, want)
	}
	if info.Anchor != "road-label" || !info.Applied || len(info.Pending) != 0 {
		t.Fatalf("info = %+v", info)
	}

	var ordered, ready int
	for len(events) > 0 {
		switch e := <-events; e.Action {
		case ActionOrdered:
			ordered++
		case ActionReady:
			ready++
		}
	}
	if ordered != 1 || ready != 4 {
		t.Errorf("ordered=%d ready=%d", ordered, ready)
	}

	if _, ok, _ := s.Image(context.Background(), "schools-marker"); !ok {
		t.Error("marker image missing")
	}
	doc, err := s.Style(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Sources["countyBoundary-shaded"]; !ok {
		t.Error("style document missing overlay source")
	}
}

func TestSessionStrictWait(t *testing.T) {
	f := newFetcher(t)
	delete(f.data, "crashes.geojson")
	s, events := startSession(t, testCatalog(), f)
	waitSettled(t, s)

	info, err := s.Stack(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Applied {
		t.Fatal("render order applied with a failed participant")
	}
	if !slices.Equal(info.Pending, []string{"crashes"}) {
		t.Fatalf("pending = %v", info.Pending)
	}
	var failed bool
	for len(events) > 0 {
		if e := <-events; e.Action == ActionFailed && e.ID == "crashes" {
			failed = true
		}
	}
	if !failed {
		t.Error("no failed event for crashes")
	}
	o, err := s.Overlay(context.Background(), "crashes")
	if err != nil {
		t.Fatal(err)
	}
	if o.State != "failed" || o.Error == "" {
		t.Errorf("crashes = %+v", o)
	}
}

func TestSessionRenderTimeout(t *testing.T) {
	f := newFetcher(t)
	f.block = map[string]bool{"crashes.geojson": true}
	c := testCatalog()
	c.RenderTimeout = 200 * time.Millisecond
	s, _ := startSession(t, c, f)

	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := s.Stack(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if info.Applied {
			if !slices.Equal(info.Excluded, []string{"crashes"}) {
				t.Fatalf("excluded = %v", info.Excluded)
			}
			ids := layerIDs(info)
			outline := slices.Index(ids, "countyBoundary-shaded")
			if outline < 0 || ids[outline+1] != "bikeLanes" || ids[outline+2] != "road-label" {
				t.Fatalf("stack = %v", ids)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("render order never applied: %+v", info)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionExcludedLateArrival(t *testing.T) {
	f := newFetcher(t)
	release := make(chan struct{})
	f.hold = map[string]chan struct{}{"crashes.geojson": release}
	c := testCatalog()
	c.RenderTimeout = 200 * time.Millisecond
	s, _ := startSession(t, c, f)

	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := s.Stack(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if info.Applied {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("render order never applied: %+v", info)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	waitSettled(t, s)
	info, err := s.Stack(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ids := layerIDs(info)
	i := slices.Index(ids, "bikeLanes")
	want := []string{"bikeLanes", "crashes-heatmap", "crashes-points", "road-label"}
	if i < 0 || i+len(want) > len(ids) || !slices.Equal(ids[i:i+len(want)], want) {
		t.Fatalf("late crashes overlay moved from its insertion position: %v", ids)
	}
}

func TestSessionToggle(t *testing.T) {
	f := newFetcher(t)
	delete(f.data, "college.png")
	s, events := startSession(t, testCatalog(), f)
	waitSettled(t, s)
	ctx := context.Background()

	if _, err := s.Toggle(ctx, "nope"); !errors.Is(err, ErrUnknownOverlay) {
		t.Fatalf("unknown: err = %v", err)
	}
	if _, err := s.Toggle(ctx, "schools"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("failed overlay: err = %v", err)
	}

	for len(events) > 0 {
		<-events
	}
	info, err := s.Toggle(ctx, "crashes")
	if err != nil {
		t.Fatal(err)
	}
	if !info.Visible {
		t.Fatal("crashes should become visible")
	}
	if e := <-events; e.Action != ActionVisibility || e.ID != "crashes" || e.Detail != mapsurface.Visible {
		t.Fatalf("event = %+v", e)
	}
	info, err = s.Toggle(ctx, "crashes")
	if err != nil || info.Visible {
		t.Fatalf("second toggle: %+v, %v", info, err)
	}
}

func TestSessionOverlays(t *testing.T) {
	s, _ := startSession(t, testCatalog(), newFetcher(t))
	waitSettled(t, s)

	list, err := s.Overlays(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	if want := []string{"bikeLanes", "schools", "crashes"}; !slices.Equal(ids, want) {
		t.Fatalf("menu = %v, want %v", ids, want)
	}
	if list[0].Legend == "" || !list[0].Visible || list[0].State != "ready" {
		t.Errorf("bikeLanes = %+v", list[0])
	}
	if list[2].Visible || list[2].Legend != "" {
		t.Errorf("crashes = %+v", list[2])
	}
}

func TestNewMapServiceUnknownOrder(t *testing.T) {
	c := testCatalog()
	c.MenuOrder = append(c.MenuOrder, "ghost")
	if _, err := NewMapService(c, newFetcher(t), nil, nil); !errors.Is(err, ErrUnknownOverlay) {
		t.Fatalf("err = %v", err)
	}
}
