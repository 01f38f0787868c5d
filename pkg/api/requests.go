package api

import (
	"strings"

	"github.com/google/uuid"
)

// RequestStatus tracks a completion request through the gateway pipeline.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
)

// CompletionPayload is the wire shape bound from JSON. It is converted into a
// CompletionRequest through NewCompletionRequest, which owns all validation.
type CompletionPayload struct {
	Prompt string `json:"prompt" binding:"required"`

	// Optional routing preferences. Absence means open selection.
	Provider *string `json:"provider,omitempty"`
	Model    *string `json:"model,omitempty"`

	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`

	// Enable streaming, defaults to `false` (empty)
	Stream bool `json:"stream,omitempty"`

	// Full-mode streams carry the cumulative buffer in each chunk instead of
	// the raw increment.
	FullChunks bool `json:"full_chunks,omitempty"`

	TenantID string `json:"tenant_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// CompletionRequest is the validated, in-flight form of a request. It is
// created per call, advanced by the gateway, and discarded afterwards.
type CompletionRequest struct {
	ID     string
	Prompt string

	Provider *string
	Model    *string

	MaxTokens   int
	Temperature float64
	Stream      bool
	FullChunks  bool

	TenantID string
	UserID   string

	status RequestStatus
}

const defaultMaxTokens = 1024

// NewCompletionRequest validates the payload and produces a pending request.
// No partially-built request is ever observable.
func NewCompletionRequest(p CompletionPayload) (*CompletionRequest, error) {
	prompt := strings.TrimSpace(p.Prompt)
	if prompt == "" {
		return nil, ValidationError(map[string]string{"prompt": "must not be empty"})
	}
	if p.MaxTokens < 0 {
		return nil, ValidationError(map[string]string{"max_tokens": "must not be negative"})
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return nil, ValidationError(map[string]string{"temperature": "must be between 0 and 2"})
	}
	if p.Provider != nil && strings.TrimSpace(*p.Provider) == "" {
		return nil, ValidationError(map[string]string{"provider": "must not be blank when present"})
	}
	if p.Model != nil && strings.TrimSpace(*p.Model) == "" {
		return nil, ValidationError(map[string]string{"model": "must not be blank when present"})
	}

	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return &CompletionRequest{
		ID:          uuid.NewString(),
		Prompt:      prompt,
		Provider:    p.Provider,
		Model:       p.Model,
		MaxTokens:   maxTokens,
		Temperature: p.Temperature,
		Stream:      p.Stream,
		FullChunks:  p.FullChunks,
		TenantID:    p.TenantID,
		UserID:      p.UserID,
		status:      StatusPending,
	}, nil
}

// Status returns the current lifecycle status.
func (r *CompletionRequest) Status() RequestStatus {
	return r.status
}

// Transition advances the lifecycle. Only pending→processing and
// processing→{completed,failed} are legal; terminal states are immutable.
func (r *CompletionRequest) Transition(next RequestStatus) error {
	switch {
	case r.status == StatusPending && next == StatusProcessing:
	case r.status == StatusProcessing && (next == StatusCompleted || next == StatusFailed):
	default:
		return InternalError("illegal request status transition", nil)
	}
	r.status = next
	return nil
}

// SelectionCriteria is what the gateway hands to provider selection.
type SelectionCriteria struct {
	RequiredTokens       int
	PreferredProvider    *string
	PreferredModel       *string
	RequiredCapabilities []Capability
}
