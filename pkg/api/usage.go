package api

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// tokenEncoding lazily initializes the cl100k_base encoding. Initialization
// may fail offline (the BPE data is fetched on first use), in which case
// estimation falls back to a character heuristic.
func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return
		}
		encoding = enc
	})
	return encoding
}

// EstimateTokens approximates the token count of text. The web UI exposes no
// token accounting, so this is a best-effort estimate: tiktoken when the
// encoding is available, otherwise len/4.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := tokenEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// EstimateUsage builds a Usage from the submitted prompt and extracted reply.
func EstimateUsage(prompt, reply string) Usage {
	p := EstimateTokens(prompt)
	c := EstimateTokens(reply)
	return Usage{
		PromptTokens:     p,
		CompletionTokens: c,
		TotalTokens:      p + c,
	}
}
