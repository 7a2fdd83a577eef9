// Package web holds the viewer page, its fragments and static assets.
package web

import "embed"

// FS contains templates/ and static/.
//
//go:embed templates static
var FS embed.FS
