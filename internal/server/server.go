package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/bikemap/internal/api"
	"github.com/joeblew999/bikemap/internal/api/viewer"
	"github.com/joeblew999/bikemap/internal/config"
	"github.com/joeblew999/bikemap/internal/humastar"
	"github.com/joeblew999/bikemap/internal/overlay"
	"github.com/joeblew999/bikemap/internal/service"
	"github.com/joeblew999/bikemap/internal/templates"
	"github.com/joeblew999/bikemap/web"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // web/ directory on disk; empty serves the embedded copy
	Catalog *config.Catalog
	Fetcher overlay.Fetcher // defaults to files under DataDir and http(s) URLs
	Logger  *log.Logger
}

// Server is the bike map HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	web      fs.FS
	services *api.Services
	renderer *templates.Renderer
	links    *humastar.Links
}

// New creates the server and its map session. The session starts with Start.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Catalog == nil {
		c, err := config.Default()
		if err != nil {
			return nil, err
		}
		cfg.Catalog = c
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = overlay.NewSourceFetcher(cfg.DataDir, nil)
	}

	var (
		webFS    fs.FS = web.FS
		renderer *templates.Renderer
		err      error
	)
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
		renderer, err = templates.New(filepath.Join(cfg.WebDir, "templates", "fragments"))
	} else {
		renderer, err = templates.NewFS(webFS, "templates/fragments/*.html")
	}
	if err != nil {
		return nil, fmt.Errorf("loading fragments: %w", err)
	}

	session, err := service.NewMapService(cfg.Catalog, cfg.Fetcher, service.NewEventBus(), cfg.Logger.WithPrefix("map"))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	links := &humastar.Links{Entry: "/health", Skip: []string{"viewer"}}

	humaConfig := huma.DefaultConfig("bikemap API", api.Version)
	humaConfig.Info.Description = "Bike map overlays: catalog, layer stack, composed style and visibility toggles."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		web:     webFS,
		services: &api.Services{
			Map:    session,
			Source: service.NewSourceService(cfg.DataDir),
		},
		renderer: renderer,
		links:    links,
	}
	s.routes()
	return s, nil
}

// Start loads the base style and the overlays. The session ends with ctx.
func (s *Server) Start(ctx context.Context) error {
	return s.services.Map.Start(ctx)
}

// Session returns the server's map session.
func (s *Server) Session() *service.MapService {
	return s.services.Map
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.config.Catalog).RegisterRoutes(s.humaAPI)
	viewer.NewHandler(s.services.Map, s.renderer).RegisterRoutes(s.humaAPI)
	s.links.Build(s.humaAPI)

	if static, err := fs.Sub(s.web, "static"); err == nil {
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}
	if s.config.DataDir != "" {
		s.mux.Handle("/data/", http.StripPrefix("/data/", s.handleData(s.config.DataDir)))
	}

	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For("/health") {
		w.Header().Add("Link", link)
	}
	s.handleViewer(w, r)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	// fragments on disk are re-read on every page load
	if s.config.WebDir != "" {
		if err := s.renderer.Reload(); err != nil {
			s.config.Logger.Error("reloading fragments", "err", err)
		}
	}
	http.ServeFileFS(w, r, s.web, "templates/viewer.html")
}

// handleData serves overlay payloads and icons with CORS so other map pages
// can load them directly.
func (s *Server) handleData(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		files.ServeHTTP(w, r)
	})
}
