package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/images"
)

// HandleSelectImage selects the image for a session. It takes either a
// multipart "image" field or a JSON body {"image_url": "..."}. Files that
// are not images are ignored and the unchanged session is returned.
func (h *Handler) HandleSelectImage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var (
		file *images.File
		err  error
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		file, err = h.readImageURL(r)
	} else {
		file, err = h.readImageUpload(w, r)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, images.ErrTooLarge) {
			h.writeError(w, "File too large (max 10MB)", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, "Failed to read image: "+err.Error(), http.StatusBadRequest)
		return
	}

	if session.Controller.SelectImage(*file) {
		h.logger.Info("Image selected", "session_id", session.ID, "name", file.Name, "mime", file.MIMEType, "bytes", len(file.Data))
	}
	h.writeJSON(w, http.StatusOK, h.view(session, false))
}

func (h *Handler) readImageURL(r *http.Request) (*images.File, error) {
	var request struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&request); err != nil {
		return nil, errors.New("invalid JSON: " + err.Error())
	}
	if request.ImageURL == "" {
		return nil, errors.New("image_url is required")
	}
	if !strings.HasPrefix(request.ImageURL, "http://") && !strings.HasPrefix(request.ImageURL, "https://") {
		return nil, errors.New("image_url must be an http(s) URL")
	}
	return h.fetcher.Load(r.Context(), request.ImageURL)
}

func (h *Handler) readImageUpload(w http.ResponseWriter, r *http.Request) (*images.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxBytes+1<<20)
	f, header, err := r.FormFile(captionapi.FieldName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return images.ReadUpload(f, header.Filename, header.Header.Get("Content-Type"))
}
