package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/completion-gateway/internal/gateway"
	"github.com/nulzo/completion-gateway/internal/server/validator"
	"github.com/nulzo/completion-gateway/pkg/api"
)

type CompletionHandler struct {
	service gateway.Service
}

func NewCompletionHandler(service gateway.Service) *CompletionHandler {
	return &CompletionHandler{service: service}
}

func (h *CompletionHandler) CreateCompletion(c *gin.Context) {
	var payload api.CompletionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		// returns RFC compliant error
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	req, err := api.NewCompletionRequest(payload)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// if we want to stream the response, roll down into streaming
	if req.Stream {
		h.handleStream(c, req)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *CompletionHandler) handleStream(c *gin.Context, req *api.CompletionRequest) {
	chunks, err := h.service.Stream(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// set headers for sse
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// drain the channel and flush each event; the transformer closes it
	// after the terminal chunk
	for chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			// client went away; cancellation propagates via the request context
			return
		}
		c.Writer.Flush()
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
