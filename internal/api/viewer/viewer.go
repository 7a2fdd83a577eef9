// Package viewer serves the overlay menu of the map page as Datastar
// server-sent events.
package viewer

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/bikemap/internal/humastar"
	"github.com/joeblew999/bikemap/internal/service"
	"github.com/joeblew999/bikemap/internal/templates"
)

const menuSelector = "#overlays-menu"

// Handler renders the menu and relays session events to the page.
type Handler struct {
	humastar.Handler
	svc *service.MapService
}

// NewHandler creates a viewer handler.
func NewHandler(svc *service.MapService, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		svc:     svc,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/viewer/menu", h.Menu, huma.OperationTags("viewer"))
	huma.Post(api, "/viewer/overlays/{id}/toggle", h.Toggle, huma.OperationTags("viewer"))
	huma.Get(api, "/viewer/events", h.Events, huma.OperationTags("viewer"))
}

// MenuItem is the data of the menu-item fragment.
type MenuItem struct {
	service.OverlayInfo
	Ready bool
}

func newMenuItem(info service.OverlayInfo) MenuItem {
	return MenuItem{OverlayInfo: info, Ready: info.State == "ready"}
}

func (h *Handler) Menu(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	menu, err := h.renderMenu(ctx)
	if err != nil {
		return nil, huma.Error503ServiceUnavailable(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(menu, menuSelector)
	}), nil
}

type ToggleInput struct {
	ID string `path:"id" doc:"Overlay ID" example:"bikeLanes"`
}

// Toggle flips an overlay and replaces its menu entry. The map follows
// through the visibility event on the events stream.
func (h *Handler) Toggle(ctx context.Context, input *ToggleInput) (*huma.StreamResponse, error) {
	info, err := h.svc.Toggle(ctx, input.ID)
	return h.Stream(func(sse humastar.SSE) {
		switch {
		case errors.Is(err, service.ErrUnknownOverlay):
			sse.Error(fmt.Sprintf("unknown overlay %s", input.ID))
		case errors.Is(err, service.ErrNotReady):
			sse.Error(fmt.Sprintf("%s is still loading", input.ID))
		case err != nil:
			sse.Error(err.Error())
		default:
			html, rerr := h.Renderer.Render("menu-item", newMenuItem(info))
			if rerr != nil {
				sse.Error(rerr.Error())
				return
			}
			sse.Replace(html, "#"+info.ID)
			sse.Signals(map[string]any{"error": ""})
		}
	}), nil
}

// Events streams session changes: the menu is re-rendered on every event
// and the page receives a map-changed browser event.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		events := h.svc.Bus().Subscribe(ctx)
		for ev := range events {
			if menu, err := h.renderMenu(ctx); err == nil {
				sse.Patch(menu, menuSelector)
			}
			detail := map[string]any{
				"resource": ev.Resource,
				"action":   ev.Action,
				"id":       ev.ID,
			}
			if ev.Action == service.ActionVisibility {
				if info, err := h.svc.Overlay(ctx, ev.ID); err == nil {
					detail["layers"] = info.Layers
					detail["visibility"] = ev.Detail
				}
			}
			sse.DispatchCustomEvent("map-changed", detail)
		}
	}), nil
}

func (h *Handler) renderMenu(ctx context.Context) (string, error) {
	list, err := h.svc.Overlays(ctx)
	if err != nil {
		return "", err
	}
	items := make([]any, len(list))
	for i, info := range list {
		items[i] = newMenuItem(info)
	}
	return h.RenderList("menu-item", items, "No overlays", "configured."), nil
}
