//go:build integration

// Integration tests against a running server: bikemap --data-dir .data
//
// Run: go test -tags=integration ./cmd/bikemap/
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"testing"
)

func baseURL() string {
	if u := os.Getenv("BIKEMAP_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8086"
}

func getJSON(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := http.Get(baseURL() + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	var body struct{ Status string }
	getJSON(t, "/health", &body)
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	var body struct{ Name string }
	getJSON(t, "/api/v1/info", &body)
	if body.Name != "bikemap" {
		t.Fatalf("name=%q, want bikemap", body.Name)
	}
}

func TestOverlays(t *testing.T) {
	var body []struct {
		ID    string
		State string
	}
	getJSON(t, "/api/v1/overlays", &body)
	if len(body) == 0 {
		t.Fatal("no overlays")
	}
	for _, o := range body {
		if o.State == "failed" {
			t.Logf("%s failed to load", o.ID)
		}
	}
}

func TestLayers(t *testing.T) {
	var body struct {
		Anchor string
		Layers []struct{ ID string }
	}
	getJSON(t, "/api/v1/map/layers", &body)
	if body.Anchor == "" {
		t.Error("no anchor resolved")
	}
}
