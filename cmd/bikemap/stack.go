package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"

	"github.com/joeblew999/bikemap/internal/service"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func printStack(ctx context.Context, w io.Writer, opts *Options, logger *log.Logger, wait time.Duration) error {
	srv, err := newServer(opts, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	session := srv.Session()
	select {
	case <-session.Settled():
	case <-time.After(wait):
		logger.Warn("overlays still loading", "after", wait)
	case <-ctx.Done():
		return ctx.Err()
	}

	info, err := session.Stack(ctx)
	if err != nil {
		return err
	}
	overlays, err := session.Overlays(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, renderStack(info, overlays))
	return err
}

// renderStack draws the layer stack bottom-to-top followed by each overlay's
// state.
func renderStack(info service.StackInfo, overlays []service.OverlayInfo) string {
	rows := make([][]string, 0, len(info.Layers))
	for i, l := range info.Layers {
		note := ""
		if l.ID == info.Anchor {
			note = "anchor"
		}
		rows = append(rows, []string{strconv.Itoa(i), l.ID, l.Type, note})
	}
	layers := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("#", "Layer", "Type", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return dimStyle
			}
			return lipgloss.NewStyle()
		})

	rows = nil
	for _, o := range overlays {
		visible := "no"
		if o.Visible {
			visible = "yes"
		}
		rows = append(rows, []string{o.ID, o.Kind, o.State, visible, o.Error})
	}
	states := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Overlay", "Kind", "State", "Visible", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row < len(overlays) && overlays[row].State == "failed" {
				return failStyle
			}
			return lipgloss.NewStyle()
		})

	var b strings.Builder
	b.WriteString(layers.Render())
	b.WriteString("\n")
	b.WriteString(states.Render())
	b.WriteString("\n")
	switch {
	case info.Applied:
		b.WriteString(dimStyle.Render("render order applied"))
	case len(info.Pending) > 0:
		b.WriteString(dimStyle.Render("waiting for " + strings.Join(info.Pending, ", ")))
	default:
		b.WriteString(dimStyle.Render("render order not applied"))
	}
	if len(info.Excluded) > 0 {
		b.WriteString("\n")
		b.WriteString(failStyle.Render("excluded after timeout: " + strings.Join(info.Excluded, ", ")))
	}
	return b.String()
}
