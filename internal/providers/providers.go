package providers

import (
	"context"
	"errors"
)

// ErrUnknownProvider is returned for a provider name with no implementation
var ErrUnknownProvider = errors.New("unknown provider")

// Request represents one vision request to an LLM provider
type Request struct {
	Model       string
	Temperature float64
	Prompt      string
	Image       []byte
	MIMEType    string
}

// Provider defines the interface for a vision-capable LLM provider
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}
