// Package web provides the embedded static assets (CSS, JS) served at
// /static/. Page templates live in internal/render.
package web

import "embed"

// StaticFS embeds the web/static/ directory tree: the production stylesheet
// and the scripts for the post interaction panel and admin uploads.
//
//go:embed all:static
var StaticFS embed.FS
