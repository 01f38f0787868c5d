package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/internal/metrics"
	"github.com/nulzo/completion-gateway/pkg/api"
	"go.uber.org/zap"
)

// maxStall is how long one chunk send may block on a stalled consumer after
// the outbound buffer is already full before the stream is failed.
const maxStall = 5 * time.Second

type transformerConfig struct {
	RequestID, StreamID string
	Provider, Model     string

	// Delta selects increment chunks; otherwise each chunk carries the
	// cumulative buffer.
	Delta bool

	BufferSize int
	Window     time.Duration
	MaxPending int

	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// transformer converts a raw backend chunk sequence into ordered
// CompletionChunks. Raw deltas are grouped into buffers gated by size and a
// time window, then re-emitted individually; every stream ends with exactly
// one last chunk.
type transformer struct {
	cfg        transformerConfig
	index      int
	cumulative strings.Builder
	terminated bool
}

func newTransformer(cfg transformerConfig) *transformer {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 8
	}
	if cfg.Window <= 0 {
		cfg.Window = 100 * time.Millisecond
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 256
	}
	return &transformer{cfg: cfg}
}

// Run starts the transform. The returned channel is closed after the last
// chunk; consumer cancellation tears the pipeline down within one window.
func (t *transformer) Run(ctx context.Context, raw <-chan llm.StreamResult) <-chan api.CompletionChunk {
	out := make(chan api.CompletionChunk, t.cfg.MaxPending)
	go t.loop(ctx, raw, out)
	return out
}

func (t *transformer) loop(ctx context.Context, raw <-chan llm.StreamResult, out chan<- api.CompletionChunk) {
	defer close(out)

	ticker := time.NewTicker(t.cfg.Window)
	defer ticker.Stop()

	var pending []string

	flush := func() bool {
		for _, delta := range pending {
			if !t.emit(ctx, out, delta) {
				return false
			}
		}
		pending = pending[:0]
		return true
	}

	for {
		select {
		case result, ok := <-raw:
			if !ok {
				// Provider closed without a completion signal; end cleanly.
				if flush() {
					t.emitLast(ctx, out, api.FinishStop, nil)
				}
				return
			}

			if result.Err != nil {
				// Hand over whatever was buffered, then the error terminal.
				flush()
				t.emitLast(ctx, out, api.FinishError, map[string]string{"error": result.Err.Error()})
				return
			}

			if result.Done {
				if flush() {
					reason := result.FinishReason
					if reason == "" {
						reason = api.FinishStop
					}
					t.emitLast(ctx, out, reason, nil)
				}
				return
			}

			pending = append(pending, result.Delta)
			if len(pending) >= t.cfg.BufferSize {
				if !flush() {
					return
				}
			}

		case <-ticker.C:
			if !flush() {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// emit sends one content chunk, respecting the stall bound.
func (t *transformer) emit(ctx context.Context, out chan<- api.CompletionChunk, delta string) bool {
	t.cumulative.WriteString(delta)

	content := delta
	if !t.cfg.Delta {
		content = t.cumulative.String()
	}

	chunk := api.CompletionChunk{
		RequestID: t.cfg.RequestID,
		StreamID:  t.cfg.StreamID,
		Index:     t.index,
		Content:   content,
		Delta:     t.cfg.Delta,
		Provider:  t.cfg.Provider,
		Model:     t.cfg.Model,
	}

	select {
	case out <- chunk:
		t.index++
		t.cfg.Metrics.StreamChunks.Inc()
		return true
	case <-ctx.Done():
		return false
	case <-time.After(maxStall):
		// Consumer stopped draining with the buffer already full. Fail the
		// stream deterministically instead of buffering without bound.
		t.cfg.Logger.Warn("Stream consumer stalled, aborting",
			zap.String("stream_id", t.cfg.StreamID),
			zap.Int("pending_cap", t.cfg.MaxPending),
		)
		t.emitLast(ctx, out, api.FinishError, map[string]string{"error": "stream buffer overflow"})
		return false
	}
}

// emitLast sends the single terminal chunk. A last chunk always carries a
// finish reason; nothing is emitted after it.
func (t *transformer) emitLast(ctx context.Context, out chan<- api.CompletionChunk, reason string, meta map[string]string) {
	if t.terminated {
		return
	}
	t.terminated = true

	chunk := api.CompletionChunk{
		RequestID:    t.cfg.RequestID,
		StreamID:     t.cfg.StreamID,
		Index:        t.index,
		Delta:        t.cfg.Delta,
		Last:         true,
		FinishReason: reason,
		Provider:     t.cfg.Provider,
		Model:        t.cfg.Model,
		Metadata:     meta,
	}

	select {
	case out <- chunk:
	case <-ctx.Done():
	case <-time.After(maxStall):
	}
}
