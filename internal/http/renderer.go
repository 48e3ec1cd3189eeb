package httpx

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed pages/page.html
var pageFS embed.FS

// pageTemplate is parsed once; a parse failure is a build defect.
var pageTemplate = template.Must(template.ParseFS(pageFS, "pages/page.html"))

// pageData feeds pages/page.html.
type pageData struct {
	Authenticated bool
	DisplayName   string
	Title         string
	Mail          string

	Message      string
	Username     string
	Remember     bool
	SubmissionID string
	CSRFToken    string
}

// renderPage buffers the page so a template failure never produces a partial body.
func renderPage(w http.ResponseWriter, logger *slog.Logger, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		logger.Error("template execution failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Debug("failed to write rendered page", slog.Any("error", err))
	}
}
