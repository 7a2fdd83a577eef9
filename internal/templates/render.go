// Package templates renders the HTML fragments sent over Datastar streams.
package templates

import (
	"bytes"
	"html/template"
	"io/fs"
	"os"
	"sync"
)

var funcMap = template.FuncMap{
	// dict builds a map from key/value pairs for nested templates.
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			if key, ok := values[i].(string); ok {
				m[key] = values[i+1]
			}
		}
		return m
	},
	// svg marks trusted inline SVG, such as generated legend icons.
	"svg": func(s string) template.HTML {
		return template.HTML(s)
	},
}

// Renderer holds the parsed fragment templates.
type Renderer struct {
	fsys    fs.FS
	pattern string

	mu        sync.RWMutex
	templates *template.Template
}

// New parses the *.html fragments in dir.
func New(dir string) (*Renderer, error) {
	return NewFS(os.DirFS(dir), "*.html")
}

// NewFS parses the templates in fsys matching pattern.
func NewFS(fsys fs.FS, pattern string) (*Renderer, error) {
	r := &Renderer{fsys: fsys, pattern: pattern}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template into buf.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload parses the templates again, for editing fragments on disk.
func (r *Renderer) Reload() error {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(r.fsys, r.pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}
