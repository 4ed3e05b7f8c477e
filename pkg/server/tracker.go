package server

import (
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/entrhq/gemweb/pkg/api"
)

// resetTracker detects conversation resets. Clients resend the whole
// message history on every request, so a shrinking message count under the
// same system prompt means the client started a fresh conversation and the
// UI should drop its accumulated context.
type resetTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func newResetTracker() *resetTracker {
	return &resetTracker{counts: make(map[string]int)}
}

// isNewConversation reports whether this request begins a new conversation,
// and records its message count for the next call.
func (t *resetTracker) isNewConversation(req *api.ChatRequest) bool {
	key := conversationKey(req)
	count := len(req.Messages)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.counts[key]
	t.counts[key] = count
	return !seen || count < prev
}

// conversationKey derives a stable key from the first system message. The
// prefix is enough to distinguish clients and keeps the hash cheap for
// large prompts.
func conversationKey(req *api.ChatRequest) string {
	for _, msg := range req.Messages {
		if msg.Role != "system" {
			continue
		}
		text := msg.Text()
		if text == "" {
			continue
		}
		if len(text) > 100 {
			text = text[:100]
		}
		h := fnv.New32a()
		h.Write([]byte(text))
		return strconv.FormatUint(uint64(h.Sum32()), 16)
	}
	return "default"
}
