package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/bikemap/internal/config"
	"github.com/joeblew999/bikemap/internal/humastar"
	"github.com/joeblew999/bikemap/internal/mapsurface"
	"github.com/joeblew999/bikemap/internal/overlay"
	"github.com/joeblew999/bikemap/internal/service"
)

type memFetcher map[string][]byte

func (f memFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if b, ok := f[location]; ok {
		return b, nil
	}
	return nil, &overlay.FetchError{Location: location, Err: errors.New("not found")}
}

func newTestAPI(t *testing.T) humatest.TestAPI {
	t.Helper()
	var icon bytes.Buffer
	if err := png.Encode(&icon, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	f := memFetcher{
		"bike.geojson":    []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`),
		"schools.geojson": []byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"Point","coordinates":[0,0]}}]}`),
		"college.png":     icon.Bytes(),
	}
	c := &config.Catalog{
		Overlays: []overlay.Spec{
			{ID: "bikeLanes", Name: "Bike Lanes", Kind: overlay.KindLine, Data: []string{"bike.geojson"},
				Options: overlay.Options{"line-color": "#22f", "line-width": 3}},
			{ID: "schools", Name: "Schools", Kind: overlay.KindSymbol, Data: []string{"schools.geojson"},
				Visibility: mapsurface.Hidden, Options: overlay.Options{"marker-url": "college.png"}},
			{ID: "crashes", Name: "Crashes", Kind: overlay.KindHeatmap, Data: []string{"missing.geojson"}},
		},
		RenderOrder: []string{"bikeLanes"},
		MenuOrder:   []string{"bikeLanes", "schools", "crashes"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m, err := service.NewMapService(c, f, nil, log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case <-m.Settled():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not settle")
	}

	links := &humastar.Links{Entry: "/health"}
	cfg := huma.DefaultConfig("bikemap test", Version)
	cfg.Transformers = append(cfg.Transformers, links.Transformer())
	_, api := humatest.New(t, cfg)
	huma.AutoRegister(api, NewAPIHandler(&Services{Map: m, Source: service.NewSourceService(t.TempDir())}))
	NewInfoHandler("data", c).RegisterRoutes(api)
	links.Build(api)
	return api
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", resp.Body.String())
	}
	links := strings.Join(resp.Header().Values("Link"), "\n")
	for _, want := range []string{`</api/v1/overlays>; rel="overlays"`, `</openapi.json>; rel="service-desc"`} {
		if !strings.Contains(links, want) {
			t.Errorf("links missing %s:\n%s", want, links)
		}
	}
}

func TestOverlays(t *testing.T) {
	api := newTestAPI(t)
	resp := api.Get("/api/v1/overlays")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	iBike, iSchools, iCrashes := strings.Index(body, `"bikeLanes"`), strings.Index(body, `"schools"`), strings.Index(body, `"crashes"`)
	if iBike < 0 || !(iBike < iSchools && iSchools < iCrashes) {
		t.Errorf("menu order wrong: %s", body)
	}
	if !strings.Contains(body, "overlay-preview-icon") {
		t.Error("line legend missing")
	}
}

func TestGetOverlay(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/overlays/schools")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	links := strings.Join(resp.Header().Values("Link"), "\n")
	if !strings.Contains(links, `rel="toggle"; method="POST"; title="Show Schools"`) {
		t.Errorf("toggle action missing:\n%s", links)
	}
	if !strings.Contains(links, `</api/v1/overlays>; rel="collection"`) {
		t.Errorf("collection link missing:\n%s", links)
	}

	resp = api.Get("/api/v1/overlays/crashes")
	if strings.Contains(strings.Join(resp.Header().Values("Link"), "\n"), `rel="toggle"`) {
		t.Error("failed overlay offers toggle")
	}
	if !strings.Contains(resp.Body.String(), `"state":"failed"`) {
		t.Errorf("body = %s", resp.Body.String())
	}

	if resp := api.Get("/api/v1/overlays/nope"); resp.Code != http.StatusNotFound {
		t.Errorf("unknown overlay status = %d", resp.Code)
	}
}

func TestToggleOverlay(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Post("/api/v1/overlays/schools/toggle")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"visible":true`) {
		t.Errorf("body = %s", resp.Body.String())
	}
	resp = api.Post("/api/v1/overlays/schools/toggle")
	if !strings.Contains(resp.Body.String(), `"visible":false`) {
		t.Errorf("second toggle body = %s", resp.Body.String())
	}

	if resp := api.Post("/api/v1/overlays/crashes/toggle"); resp.Code != http.StatusConflict {
		t.Errorf("failed overlay status = %d", resp.Code)
	}
	if resp := api.Post("/api/v1/overlays/nope/toggle"); resp.Code != http.StatusNotFound {
		t.Errorf("unknown overlay status = %d", resp.Code)
	}
}

func TestMapRoutes(t *testing.T) {
	api := newTestAPI(t)

	resp := api.Get("/api/v1/map/layers")
	if resp.Code != http.StatusOK {
		t.Fatalf("layers status = %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `"anchor":"road-label"`) || !strings.Contains(body, `"applied":true`) {
		t.Errorf("layers = %s", body)
	}
	if strings.Index(body, `"bikeLanes"`) > strings.Index(body, `"road-label"`) {
		t.Errorf("bikeLanes not below the anchor: %s", body)
	}

	resp = api.Get("/api/v1/map/style")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"version":8`) {
		t.Fatalf("style = %d %s", resp.Code, resp.Body.String())
	}

	resp = api.Get("/api/v1/map/images/schools-marker")
	if resp.Code != http.StatusOK || resp.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("image = %d %q", resp.Code, resp.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Errorf("image body: %v", err)
	}
	if resp := api.Get("/api/v1/map/images/nope"); resp.Code != http.StatusNotFound {
		t.Errorf("missing image status = %d", resp.Code)
	}
}

func TestInfoAndSources(t *testing.T) {
	api := newTestAPI(t)
	resp := api.Get("/api/v1/info")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"overlays":3`) {
		t.Errorf("info = %d %s", resp.Code, resp.Body.String())
	}
	resp = api.Get("/api/v1/sources")
	if resp.Code != http.StatusOK || strings.TrimSpace(resp.Body.String()) != "[]" {
		t.Errorf("sources = %d %s", resp.Code, resp.Body.String())
	}
}
