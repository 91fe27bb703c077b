package api

import (
	"embed"
	"html/template"
)

//go:embed static/dashboard.html.tmpl
var apiStaticFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(apiStaticFS, "static/dashboard.html.tmpl"))
