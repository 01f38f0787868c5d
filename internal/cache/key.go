package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key derives the deterministic cache key for a resolved completion. The
// prompt is normalized (trimmed, inner whitespace collapsed) so formatting
// noise doesn't defeat the cache; everything else is taken verbatim.
func Key(prompt, providerID, model string, maxTokens int, temperature float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%.4f",
		normalizePrompt(prompt), providerID, model, maxTokens, temperature)
	return "completion:" + hex.EncodeToString(h.Sum(nil))
}

func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}
