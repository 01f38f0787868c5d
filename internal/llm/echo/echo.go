package echo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/pkg/api"
)

func init() {
	llm.Register("echo", NewAdapter)
}

// Adapter is a local development backend. It synthesizes deterministic
// completions so the gateway runs end-to-end without a real provider.
type Adapter struct {
	config config.ProviderConfig

	// delay between synthesized stream chunks
	chunkDelay time.Duration
}

func NewAdapter(cfg config.ProviderConfig) (llm.Provider, error) {
	return &Adapter{
		config:     cfg,
		chunkDelay: 10 * time.Millisecond,
	}, nil
}

func (a *Adapter) Name() string { return a.config.ID }
func (a *Adapter) Type() string { return "echo" }

func (a *Adapter) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("echo(%s): %s", req.Model, req.Prompt)
	return &llm.Response{
		Content:      content,
		InputTokens:  tokenEstimate(req.Prompt),
		OutputTokens: tokenEstimate(content),
		FinishReason: api.FinishStop,
	}, nil
}

func (a *Adapter) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(chan llm.StreamResult)

	go func() {
		defer close(out)

		for _, word := range strings.Fields(req.Prompt) {
			select {
			case out <- llm.StreamResult{Delta: word + " "}:
			case <-ctx.Done():
				return
			}

			select {
			case <-time.After(a.chunkDelay):
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- llm.StreamResult{Done: true, FinishReason: api.FinishStop}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func (a *Adapter) Health(ctx context.Context) (*llm.HealthReport, error) {
	return &llm.HealthReport{Status: api.ProviderAvailable, Message: "ok"}, nil
}

// tokenEstimate approximates tokens as words. Good enough for a synthetic
// backend.
func tokenEstimate(s string) int {
	return len(strings.Fields(s))
}
