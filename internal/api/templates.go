package api

import (
	"embed"
	"html/template"

	"github.com/lox/weatherqueries/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates parses the embedded HTML templates with helper functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"country": func(l models.Location) string {
			if l.Country == nil {
				return ""
			}
			return *l.Country
		},
		"created": func(q models.Query) string {
			return q.CreatedAt.UTC().Format("2006-01-02 15:04 MST")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
