package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/images"
)

// DefaultTranslationDelay is the pause before the display mode flips.
// No translation happens during it; the translated caption already arrived
// with the source caption.
// TODO: replace with a real translate call once the server exposes one.
const DefaultTranslationDelay = time.Second

// Captioner issues one caption request.
type Captioner interface {
	Caption(ctx context.Context, upload captionapi.Upload) (*captionapi.Captions, error)
}

// Previews creates and releases display URIs.
type Previews interface {
	Create(mimeType string, data []byte) string
	Release(uri string)
}

// Options configure a Controller
type Options struct {
	Captioner        Captioner
	Previews         Previews
	TranslationDelay time.Duration
	Logger           *slog.Logger
}

// Controller owns one Session and runs the effects Reduce asks for.
// Events are handled one at a time; the caption request and the translation
// delay run on their own goroutines and report back as events.
type Controller struct {
	captioner Captioner
	previews  Previews
	delay     time.Duration
	logger    *slog.Logger

	// after is swapped in tests
	after func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	session Session
	nextID  uint64
	notices []Notice
	closed  bool

	// pending counts running requests and delays; idle is closed while it is 0
	pending int
	idle    chan struct{}
}

// NewController creates a controller in the Idle state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := opts.TranslationDelay
	if delay < 0 {
		delay = 0
	}
	idle := make(chan struct{})
	close(idle)
	return &Controller{
		captioner: opts.Captioner,
		previews:  opts.Previews,
		delay:     delay,
		logger:    logger,
		after:     time.After,
		idle:      idle,
	}
}

// SelectImage replaces the selected image. Files that are not image-typed are
// ignored without notice; the return value reports whether f was accepted.
func (c *Controller) SelectImage(f images.File) bool {
	if !images.IsImage(f.MIMEType) {
		c.logger.Debug("Ignoring non-image selection", "name", f.Name, "mime", f.MIMEType)
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	img := SelectedImage{
		ID:       id,
		Name:     f.Name,
		MIMEType: f.MIMEType,
		Data:     f.Data,
	}
	if c.previews != nil {
		img.PreviewURI = c.previews.Create(f.MIMEType, f.Data)
	}

	if !c.dispatch(SelectImageEvent{Image: img}) && c.previews != nil {
		c.previews.Release(img.PreviewURI)
		return false
	}
	return true
}

// Generate requests captions for the selected image. It is a no-op when no
// image is selected or a request is already in flight.
func (c *Controller) Generate() {
	c.dispatch(GenerateEvent{})
}

// ToggleTranslation flips the display mode after the fixed delay. Only valid
// once captions are ready.
func (c *Controller) ToggleTranslation() {
	c.dispatch(ToggleTranslationEvent{})
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Notices returns and clears the notices raised since the last call.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	notices := c.notices
	c.notices = nil
	return notices
}

// Wait blocks until every outstanding request and delay has delivered its
// event, or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, waits for outstanding work and releases the
// current preview.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.Wait(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previews != nil && c.session.Image != nil && c.session.Image.PreviewURI != "" {
		c.previews.Release(c.session.Image.PreviewURI)
	}
}

// dispatch reports false when the controller is closed and e was dropped.
func (c *Controller) dispatch(e Event) bool {
	c.mu.Lock()
	// Completions still land after Close so pending work drains.
	if c.closed && !isCompletion(e) {
		c.mu.Unlock()
		return false
	}
	before := c.session
	next, effects := Reduce(c.session, e)
	c.session = next
	for _, eff := range effects {
		if n, ok := eff.(Notify); ok {
			c.notices = append(c.notices, n.Notice)
		}
	}
	// Register async work before unlocking so Wait never misses it.
	if n := countAsync(effects); n > 0 {
		if c.pending == 0 {
			c.idle = make(chan struct{})
		}
		c.pending += n
	}
	c.mu.Unlock()

	if before.State != next.State {
		c.logger.Debug("Workflow transition", "event", eventName(e), "from", before.State, "to", next.State)
	}

	for _, eff := range effects {
		c.run(eff)
	}
	return true
}

func (c *Controller) run(eff Effect) {
	switch eff := eff.(type) {
	case IssueRequest:
		go c.request(eff.Image)
	case StartDelay:
		go c.wait(eff.ImageID)
	case ReleasePreview:
		if c.previews != nil {
			c.previews.Release(eff.URI)
		}
	case Notify:
		c.logger.Warn("Caption request failed", "kind", eff.Notice.Kind, "message", eff.Notice.Message)
	}
}

func (c *Controller) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
}

func (c *Controller) request(img SelectedImage) {
	defer c.done()

	start := time.Now()
	captions, err := c.captioner.Caption(context.Background(), captionapi.Upload{
		Filename:    img.Name,
		ContentType: img.MIMEType,
		Data:        img.Data,
	})
	if err != nil {
		c.logger.Error("Caption request error", "image", img.Name, "err", err)
		c.dispatch(CaptionFailedEvent{ImageID: img.ID, Notice: NoticeFor(err)})
		return
	}

	c.logger.Info("Captions received", "image", img.Name, "duration", time.Since(start))
	c.dispatch(CaptionSucceededEvent{
		ImageID: img.ID,
		Result: CaptionResult{
			Text:       captions.CaptionText,
			Translated: captions.CaptionArabic,
		},
	})
}

func (c *Controller) wait(imageID uint64) {
	defer c.done()
	<-c.after(c.delay)
	c.dispatch(ToggleElapsedEvent{ImageID: imageID})
}

func countAsync(effects []Effect) int {
	n := 0
	for _, eff := range effects {
		switch eff.(type) {
		case IssueRequest, StartDelay:
			n++
		}
	}
	return n
}

func isCompletion(e Event) bool {
	switch e.(type) {
	case CaptionSucceededEvent, CaptionFailedEvent, ToggleElapsedEvent:
		return true
	}
	return false
}

func eventName(e Event) string {
	switch e.(type) {
	case SelectImageEvent:
		return "select_image"
	case GenerateEvent:
		return "generate"
	case CaptionSucceededEvent:
		return "caption_succeeded"
	case CaptionFailedEvent:
		return "caption_failed"
	case ToggleTranslationEvent:
		return "toggle_translation"
	case ToggleElapsedEvent:
		return "toggle_elapsed"
	default:
		return "unknown"
	}
}
