// Package api defines the Huma API routes and handlers.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/bikemap/internal/humastar"
	"github.com/joeblew999/bikemap/internal/mapsurface"
	"github.com/joeblew999/bikemap/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Map    *service.MapService
	Source *service.SourceService
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Overlay ID" example:"bikeLanes"`
}

type ImageInput struct {
	Name string `path:"name" doc:"Image name" example:"schools-marker"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// OverlayBody is an overlay with its state-dependent toggle action.
type OverlayBody struct {
	service.OverlayInfo
}

// Actions offers the toggle once the overlay has layers.
func (b OverlayBody) Actions() []humastar.Action {
	if b.State != "ready" {
		return nil
	}
	title := "Hide " + b.Name
	if !b.Visible {
		title = "Show " + b.Name
	}
	return []humastar.Action{{
		Rel:    "toggle",
		Href:   fmt.Sprintf("/api/v1/overlays/%s/toggle", b.ID),
		Method: "POST",
		Title:  title,
	}}
}

type OverlayOutput struct {
	Body OverlayBody
}

type OverlaysOutput struct {
	Body []service.OverlayInfo
}

type StyleOutput struct {
	Body mapsurface.Document
}

type StackOutput struct {
	Body service.StackInfo
}

type ImageOutput struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterOverlays registers the overlay menu routes.
func (h *APIHandler) RegisterOverlays(api huma.API) {
	huma.Get(api, "/api/v1/overlays", h.GetOverlays, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{id}", h.GetOverlay, huma.OperationTags("overlays"))
	huma.Post(api, "/api/v1/overlays/{id}/toggle", h.ToggleOverlay, huma.OperationTags("overlays"))
}

// RegisterMap registers the composed style and layer stack routes.
func (h *APIHandler) RegisterMap(api huma.API) {
	huma.Get(api, "/api/v1/map/style", h.GetStyle, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/layers", h.GetLayers, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/map/images/{name}", h.GetImage, huma.OperationTags("map"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetOverlays(ctx context.Context, input *struct{}) (*OverlaysOutput, error) {
	list, err := h.svc.Map.Overlays(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	if list == nil {
		list = []service.OverlayInfo{}
	}
	return &OverlaysOutput{Body: list}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *IDInput) (*OverlayOutput, error) {
	info, err := h.svc.Map.Overlay(ctx, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &OverlayOutput{Body: OverlayBody{info}}, nil
}

func (h *APIHandler) ToggleOverlay(ctx context.Context, input *IDInput) (*OverlayOutput, error) {
	info, err := h.svc.Map.Toggle(ctx, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &OverlayOutput{Body: OverlayBody{info}}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *struct{}) (*StyleOutput, error) {
	doc, err := h.svc.Map.Style(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &StyleOutput{Body: doc}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*StackOutput, error) {
	info, err := h.svc.Map.Stack(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &StackOutput{Body: info}, nil
}

func (h *APIHandler) GetImage(ctx context.Context, input *ImageInput) (*ImageOutput, error) {
	img, ok, err := h.svc.Map.Image(ctx, input.Name)
	if err != nil {
		return nil, mapError(err)
	}
	if !ok {
		return nil, huma.Error404NotFound("image not found")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, huma.Error500InternalServerError("encoding image", err)
	}
	return &ImageOutput{ContentType: "image/png", CacheControl: "max-age=3600", Body: buf.Bytes()}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

// mapError translates session errors to HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownOverlay):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrNotReady):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, mapsurface.ErrStyleNotLoaded),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError("map session", err)
}
