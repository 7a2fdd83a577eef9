package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/bikemap/internal/config"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

type InfoHandler struct {
	dataDir string
	catalog *config.Catalog
}

func NewInfoHandler(dataDir string, catalog *config.Catalog) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, catalog: catalog}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name          string   `json:"name" doc:"Service name"`
	Version       string   `json:"version" doc:"Service version"`
	DataDir       string   `json:"data_dir" doc:"Data directory path"`
	Overlays      int      `json:"overlays" doc:"Number of catalog overlays"`
	RenderOrder   []string `json:"render_order" doc:"Overlays ordered by the coordinator, bottom-to-top"`
	RenderTimeout string   `json:"render_timeout" doc:"Wait bound for render-order overlays; 0s waits for all"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:          "bikemap",
		Version:       Version,
		DataDir:       h.dataDir,
		Overlays:      len(h.catalog.Overlays),
		RenderOrder:   h.catalog.RenderOrder,
		RenderTimeout: h.catalog.RenderTimeout.String(),
	}}, nil
}
