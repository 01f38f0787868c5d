package echo

import (
	"context"
	"testing"
	"time"

	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
)

func newEcho(t *testing.T) llm.Provider {
	t.Helper()
	p, err := NewAdapter(config.ProviderConfig{ID: "echo-dev", Type: "echo"})
	assert.NoError(t, err)
	return p
}

func TestAdapter_Registered(t *testing.T) {
	f, err := llm.Get("echo")
	assert.NoError(t, err)
	assert.NotNil(t, f)
}

func TestAdapter_Complete(t *testing.T) {
	p := newEcho(t)

	resp, err := p.Complete(context.Background(), &llm.Request{Model: "echo-1", Prompt: "hello there"})
	assert.NoError(t, err)
	assert.Equal(t, "echo(echo-1): hello there", resp.Content)
	assert.Equal(t, api.FinishStop, resp.FinishReason)
	assert.Equal(t, 2, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
}

func TestAdapter_CompleteIsDeterministic(t *testing.T) {
	p := newEcho(t)
	req := &llm.Request{Model: "echo-1", Prompt: "same in, same out"}

	a, _ := p.Complete(context.Background(), req)
	b, _ := p.Complete(context.Background(), req)
	assert.Equal(t, a.Content, b.Content)
}

func TestAdapter_Stream(t *testing.T) {
	p := newEcho(t)

	out, err := p.Stream(context.Background(), &llm.Request{Model: "echo-1", Prompt: "one two three"})
	assert.NoError(t, err)

	var deltas []string
	doneSeen := false
	for result := range out {
		assert.NoError(t, result.Err)
		if result.Done {
			doneSeen = true
			assert.Equal(t, api.FinishStop, result.FinishReason)
			continue
		}
		deltas = append(deltas, result.Delta)
	}

	assert.True(t, doneSeen)
	assert.Equal(t, []string{"one ", "two ", "three "}, deltas)
}

func TestAdapter_StreamCancellation(t *testing.T) {
	p := newEcho(t)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := p.Stream(ctx, &llm.Request{Model: "echo-1", Prompt: "a b c d e f g h"})
	assert.NoError(t, err)

	<-out
	cancel()

	// The adapter must close the channel shortly after cancellation.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-out:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestAdapter_Health(t *testing.T) {
	p := newEcho(t)

	report, err := p.Health(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, api.ProviderAvailable, report.Status)
}
