// Package workflow holds the caption workflow state machine.
//
// Reduce is pure: it maps a Session and an Event to the next Session plus
// the effects the caller must run. Controller runs those effects.
package workflow

import (
	"github.com/lehigh-university-libraries/captioner/internal/images"
)

// State is the workflow state shown to the user.
type State int

const (
	Idle State = iota
	ImageSelected
	Generating
	CaptionsReady
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ImageSelected:
		return "image_selected"
	case Generating:
		return "generating"
	case CaptionsReady:
		return "captions_ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// DisplayMode picks which caption is rendered.
type DisplayMode int

const (
	DisplaySource DisplayMode = iota
	DisplayTranslated
)

func (m DisplayMode) String() string {
	if m == DisplayTranslated {
		return "translated"
	}
	return "source"
}

// SelectedImage is the image the user picked plus its display URI.
// ID tags caption requests so late answers for a replaced image are dropped.
type SelectedImage struct {
	ID         uint64
	Name       string
	MIMEType   string
	Data       []byte
	PreviewURI string
}

// CaptionResult is the caption pair from one server call
type CaptionResult struct {
	Text       string
	Translated string
}

// Session is the full workflow state of one user.
type Session struct {
	State       State
	Image       *SelectedImage
	Result      *CaptionResult
	Mode        DisplayMode
	Translating bool

	// InFlight is the ID of the image whose request is outstanding, 0 if none.
	InFlight   uint64
	LastNotice *Notice
}

// Status is State, except that a session holding a fresh failure notice
// reports Error.
func (s Session) Status() State {
	if s.State == ImageSelected && s.LastNotice != nil {
		return Error
	}
	return s.State
}

// CanGenerate mirrors the disabled state of the generate trigger.
func (s Session) CanGenerate() bool {
	return s.Image != nil && s.InFlight == 0
}

func (s Session) CanToggle() bool {
	return s.State == CaptionsReady && !s.Translating
}

// Displayed returns the caption for the current display mode, or "" when
// no captions are ready.
func (s Session) Displayed() string {
	if s.State != CaptionsReady || s.Result == nil {
		return ""
	}
	if s.Mode == DisplayTranslated {
		return s.Result.Translated
	}
	return s.Result.Text
}

// Event is something that happened to a session.
type Event interface {
	event()
}

// SelectImageEvent is the user picking or dropping a file.
type SelectImageEvent struct {
	Image SelectedImage
}

// GenerateEvent is the user pressing generate.
type GenerateEvent struct{}

// CaptionSucceededEvent is a 2xx answer with both captions.
type CaptionSucceededEvent struct {
	ImageID uint64
	Result  CaptionResult
}

// CaptionFailedEvent is a rejected or undelivered request.
type CaptionFailedEvent struct {
	ImageID uint64
	Notice  Notice
}

// ToggleTranslationEvent is the user pressing translate.
type ToggleTranslationEvent struct{}

// ToggleElapsedEvent fires when the translation delay is over.
type ToggleElapsedEvent struct {
	ImageID uint64
}

func (SelectImageEvent) event()       {}
func (GenerateEvent) event()          {}
func (CaptionSucceededEvent) event()  {}
func (CaptionFailedEvent) event()     {}
func (ToggleTranslationEvent) event() {}
func (ToggleElapsedEvent) event()     {}

// Effect is work the caller performs after a transition.
type Effect interface {
	effect()
}

// IssueRequest sends exactly one caption request for Image.
type IssueRequest struct {
	Image SelectedImage
}

// StartDelay waits the fixed translation delay, then delivers
// ToggleElapsedEvent for ImageID.
type StartDelay struct {
	ImageID uint64
}

// ReleasePreview frees a superseded display URI.
type ReleasePreview struct {
	URI string
}

// Notify shows a notice to the user.
type Notify struct {
	Notice Notice
}

func (IssueRequest) effect()   {}
func (StartDelay) effect()     {}
func (ReleasePreview) effect() {}
func (Notify) effect()         {}

// Reduce applies e to s.
func Reduce(s Session, e Event) (Session, []Effect) {
	switch ev := e.(type) {
	case SelectImageEvent:
		// Non-image payloads are dropped silently.
		if !images.IsImage(ev.Image.MIMEType) {
			return s, nil
		}
		var effects []Effect
		if s.Image != nil && s.Image.PreviewURI != "" && s.Image.PreviewURI != ev.Image.PreviewURI {
			effects = append(effects, ReleasePreview{URI: s.Image.PreviewURI})
		}
		img := ev.Image
		s.Image = &img
		s.Result = nil
		s.Mode = DisplaySource
		s.LastNotice = nil
		s.Translating = false
		s.State = ImageSelected
		return s, effects

	case GenerateEvent:
		if !s.CanGenerate() {
			return s, nil
		}
		s.State = Generating
		s.InFlight = s.Image.ID
		s.Result = nil
		s.LastNotice = nil
		return s, []Effect{IssueRequest{Image: *s.Image}}

	case CaptionSucceededEvent:
		if s.InFlight == ev.ImageID {
			s.InFlight = 0
		}
		if s.Image == nil || s.Image.ID != ev.ImageID {
			return s, nil
		}
		result := ev.Result
		s.Result = &result
		s.Mode = DisplaySource
		s.State = CaptionsReady
		return s, nil

	case CaptionFailedEvent:
		if s.InFlight == ev.ImageID {
			s.InFlight = 0
		}
		if s.Image == nil || s.Image.ID != ev.ImageID {
			return s, nil
		}
		notice := ev.Notice
		s.Result = nil
		s.LastNotice = &notice
		s.State = ImageSelected
		return s, []Effect{Notify{Notice: notice}}

	case ToggleTranslationEvent:
		if !s.CanToggle() {
			return s, nil
		}
		s.Translating = true
		return s, []Effect{StartDelay{ImageID: s.Image.ID}}

	case ToggleElapsedEvent:
		// A delay started for a replaced image must not touch the new one.
		if s.Image == nil || s.Image.ID != ev.ImageID {
			return s, nil
		}
		s.Translating = false
		if s.State != CaptionsReady {
			return s, nil
		}
		if s.Mode == DisplaySource {
			s.Mode = DisplayTranslated
		} else {
			s.Mode = DisplaySource
		}
		return s, nil
	}

	return s, nil
}
