// Package web holds the board's templates and browser assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Templates parses the page, board and modal templates with funcs available.
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("prodboard").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// Static returns the assets rooted at static/, ready for http.FS.
func Static() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
