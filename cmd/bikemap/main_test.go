package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/bikemap/internal/mapsurface"
	"github.com/joeblew999/bikemap/internal/service"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "overlay", "bikeLanes")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug logged without verbose: %q", out)
	}
	if !strings.Contains(out, "overlay=bikeLanes") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	newLogger(&buf, true).Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug missing with verbose: %q", buf.String())
	}
}

func TestRenderStack(t *testing.T) {
	info := service.StackInfo{
		Layers: []mapsurface.LayerRef{
			{ID: "background", Type: "background"},
			{ID: "bikeLanes", Type: "line"},
			{ID: "road-label", Type: "symbol"},
			{ID: "schools", Type: "symbol"},
		},
		Anchor:  "road-label",
		Applied: true,
	}
	overlays := []service.OverlayInfo{
		{ID: "bikeLanes", Kind: "line", State: "ready", Visible: true},
		{ID: "crashes", Kind: "heatmap", State: "failed", Error: "fetch crashes.geojson: not found"},
	}
	out := renderStack(info, overlays)

	top := strings.Index(out, "schools")
	bottom := strings.Index(out, "background")
	if top < 0 || bottom < 0 || bottom > top {
		t.Errorf("layers not listed bottom-to-top:\n%s", out)
	}
	for _, want := range []string{"anchor", "crashes", "not found", "render order applied"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	out = renderStack(service.StackInfo{Pending: []string{"crashes"}, Excluded: []string{"schools"}}, nil)
	if !strings.Contains(out, "waiting for crashes") || !strings.Contains(out, "excluded after timeout: schools") {
		t.Errorf("progress lines missing:\n%s", out)
	}
}

const districts = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"DISTRICT":1,"NAME":null},"geometry":{"type":"Polygon","coordinates":[[[-117.2,32.7],[-117.1,32.7],[-117.1,32.8],[-117.2,32.8],[-117.2,32.7]]]}}
]}`

func runPrep(t *testing.T, args ...string) {
	t.Helper()
	cmd := prepCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("prep %v: %v", args, err)
	}
}

func TestPrepGeometry(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "districts.geojson")
	if err := os.WriteFile(in, []byte(districts), 0o644); err != nil {
		t.Fatal(err)
	}

	simplified := filepath.Join(dir, "simplified.geojson")
	runPrep(t, "simplify", in, simplified, "--tolerance", "10")
	fc := readFC(t, simplified)
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	if _, ok := fc.Features[0].Properties["NAME"]; ok {
		t.Error("null property kept")
	}

	centers := filepath.Join(dir, "centers.geojson")
	runPrep(t, "centers", in, centers)
	fc = readFC(t, centers)
	if got := fc.Features[0].Geometry.GeoJSONType(); got != "Point" {
		t.Errorf("center geometry = %s", got)
	}
}

func TestPrepArgs(t *testing.T) {
	cmd := prepCommand()
	cmd.SetArgs([]string{"centers", "only-one.geojson"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected argument error")
	}
}

func readFC(t *testing.T, path string) *geojson.FeatureCollection {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	return fc
}
