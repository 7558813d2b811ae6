package handlers

import (
	"embed"
	"net/http"
	"strconv"
)

//go:embed static
var staticFiles embed.FS

func (h *Handler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, "static/index.html")
}

func (h *Handler) HandleApp(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, "static/app.html")
}

func (h *Handler) servePage(w http.ResponseWriter, name string) {
	page, err := staticFiles.ReadFile(name)
	if err != nil {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		h.logger.Error("Unable to write page", "page", name, "err", err)
	}
}

// HandlePreview serves the bytes behind a preview URI
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	item, ok := h.previews.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", item.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(item.Data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(item.Data); err != nil {
		h.logger.Error("Unable to write preview", "err", err)
	}
}

func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("Unable to write healthcheck", "err", err)
	}
}
