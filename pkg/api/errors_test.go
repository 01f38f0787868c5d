package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProblem_MarshalMergesExtensions(t *testing.T) {
	p := ValidationError(map[string]string{"prompt": "must not be empty"})

	data, err := json.Marshal(p)
	assert.NoError(t, err)

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Validation Error", decoded["title"])
	assert.Equal(t, float64(http.StatusBadRequest), decoded["status"])
	fields := decoded["errors"].(map[string]interface{})
	assert.Equal(t, "must not be empty", fields["prompt"])
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ProviderUnavailableError("backend down", cause)

	assert.Equal(t, "backend down", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundError("nope")))
	assert.False(t, IsNotFound(RateLimitError("slow down")))

	assert.True(t, IsRateLimited(RateLimitError("slow down")))
	assert.False(t, IsRateLimited(NotFoundError("nope")))

	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsRateLimited(nil))
}

func TestErrorPredicates_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFoundError("missing"))
	assert.True(t, IsNotFound(wrapped))
}
