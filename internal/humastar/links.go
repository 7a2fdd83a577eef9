package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links derives RFC 8288 Link headers from the registered operations so
// clients can navigate the API without hard-coded paths.
//
// Create Links before the API so its Transformer can be installed in the
// config, then call Build once every route is registered.
type Links struct {
	// Entry is the path that links to every collection.
	Entry string
	// Skip excludes operations carrying any of these tags.
	Skip []string

	mu     sync.RWMutex
	byPath map[string][]string
}

// Build walks the OpenAPI paths and records links:
// items link up to their collection, collections link to their item
// template and back to Entry, and Entry links to every collection and to
// the API description.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	m := map[string][]string{}
	add := func(from, to, rel string) {
		v := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(m[from], v) {
			m[from] = append(m[from], v)
		}
	}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if l.skipped(pi) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	for _, item := range items {
		parent := path.Dir(item)
		if slices.Contains(collections, parent) {
			add(item, parent, "collection")
			add(parent, item, "item")
		}
	}
	for _, c := range collections {
		if c == l.Entry {
			continue
		}
		add(c, l.Entry, "up")
		add(l.Entry, c, lastSegment(c))
	}
	add(l.Entry, "/openapi.json", "service-desc")
	add(l.Entry, "/docs", "service-doc")

	l.mu.Lock()
	l.byPath = m
	l.mu.Unlock()
}

// For returns the links recorded for an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPath[opPath]
}

// Transformer appends the recorded links, a self link for item paths and
// the body's actions to every response.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func (l *Links) skipped(pi *huma.PathItem) bool {
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
		if op == nil {
			continue
		}
		for _, tag := range op.Tags {
			if slices.Contains(l.Skip, tag) {
				return true
			}
		}
	}
	return false
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}
