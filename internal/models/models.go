package models

import (
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/workflow"
)

// SessionView is the JSON form of a caption session
type SessionView struct {
	ID           string            `json:"id"`
	State        string            `json:"state"`
	Image        *ImageView        `json:"image,omitempty"`
	Caption      string            `json:"caption,omitempty"`
	DisplayMode  string            `json:"display_mode"`
	Translating  bool              `json:"translating"`
	CanGenerate  bool              `json:"can_generate"`
	CanTranslate bool              `json:"can_translate"`
	Notices      []workflow.Notice `json:"notices,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ImageView represents the selected image
type ImageView struct {
	Name        string `json:"name"`
	MIMEType    string `json:"mime_type"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ImageWidth  int    `json:"image_width,omitempty"`
	ImageHeight int    `json:"image_height,omitempty"`
}

// NewSessionView renders a workflow snapshot. notices are the ones drained
// for this response, if any.
func NewSessionView(id string, createdAt time.Time, s workflow.Session, notices []workflow.Notice) SessionView {
	view := SessionView{
		ID:           id,
		State:        s.Status().String(),
		Caption:      s.Displayed(),
		DisplayMode:  s.Mode.String(),
		Translating:  s.Translating,
		CanGenerate:  s.CanGenerate(),
		CanTranslate: s.CanToggle(),
		Notices:      notices,
		CreatedAt:    createdAt,
	}
	if s.Image != nil {
		view.Image = &ImageView{
			Name:       s.Image.Name,
			MIMEType:   s.Image.MIMEType,
			PreviewURL: s.Image.PreviewURI,
		}
	}
	return view
}
