// Package server is the caption HTTP API: POST /caption and GET /health.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/images"
)

const (
	msgNoImage  = "No image uploaded"
	msgNotImage = "Uploaded file is not an image"
)

// Captioner produces the caption pair for one image
type Captioner interface {
	Caption(ctx context.Context, data []byte, mimeType string) (*captionapi.Captions, error)
}

// Options configure the caption server
type Options struct {
	Captioner      Captioner
	Mode           string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Server struct {
	captioner Captioner
	maxBytes  int64
	logger    *slog.Logger
	router    *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = images.MaxBytes
	}

	s := &Server{
		captioner: opts.Captioner,
		maxBytes:  maxBytes,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors())
	r.MaxMultipartMemory = maxBytes

	r.POST("/caption", s.caption)
	r.GET("/health", s.health)

	s.router = r
	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Caption server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down caption server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) caption(c *gin.Context) {
	// room for the multipart framing around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes+1<<20)

	fh, err := c.FormFile(captionapi.FieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, captionapi.ErrorResponse{Error: s.tooLargeMessage()})
			return
		}
		c.JSON(http.StatusBadRequest, captionapi.ErrorResponse{Error: msgNoImage})
		return
	}
	if fh.Size > s.maxBytes {
		c.JSON(http.StatusBadRequest, captionapi.ErrorResponse{Error: s.tooLargeMessage()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.logger.Error("Failed to open upload", "err", err)
		c.JSON(http.StatusInternalServerError, captionapi.ErrorResponse{Error: err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Error("Failed to read upload", "err", err)
		c.JSON(http.StatusInternalServerError, captionapi.ErrorResponse{Error: err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, captionapi.ErrorResponse{Error: msgNoImage})
		return
	}

	file := images.File{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}
	file.Sniff()
	if !images.IsImage(file.MIMEType) {
		c.JSON(http.StatusBadRequest, captionapi.ErrorResponse{Error: msgNotImage})
		return
	}

	s.logger.Info("Captioning upload", "filename", file.Name, "mime", file.MIMEType, "size", len(data))

	captions, err := s.captioner.Caption(c.Request.Context(), file.Data, file.MIMEType)
	if err != nil {
		s.logger.Error("Captioning failed", "filename", file.Name, "err", err)
		c.JSON(http.StatusInternalServerError, captionapi.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, captions)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, captionapi.HealthResponse{Status: "healthy"})
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("Image exceeds the %d MB limit", s.maxBytes/(1024*1024))
}
