package llm

import (
	"context"

	"github.com/nulzo/completion-gateway/pkg/api"
)

// Provider is the uniform gateway every backend is accessed through. The
// wire protocol behind it is the adapter's concern, never the core's.
type Provider interface {
	Name() string
	Type() string // e.g., "echo", "openai"

	Complete(ctx context.Context, req *Request) (*Response, error)
	Stream(ctx context.Context, req *Request) (<-chan StreamResult, error)
	Health(ctx context.Context) (*HealthReport, error)
}

// Request is the backend-facing form of a completion call. Routing has
// already happened by the time one of these exists.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is a raw backend completion.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// StreamResult is one raw chunk off a backend stream. Done carries the
// backend's finish reason; Err terminates the stream.
type StreamResult struct {
	Delta        string
	Done         bool
	FinishReason string
	Err          error
}

// HealthReport is what a backend probe returns.
type HealthReport struct {
	Status  api.ProviderStatus
	Message string
}
