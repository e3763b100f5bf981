// Package web holds the server-rendered page templates.
package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"stamp": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
}

// Templates parses every page; gin renders them by file name.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
}
