package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/entrhq/gemweb/pkg/api"
)

// writeStream emits a completed response as an SSE chunk sequence. The
// reply is only available once the page stabilizes, so this is synthesized
// streaming: a role chunk, then the full content (or one chunk per tool
// call), then the finish chunk and [DONE].
func writeStream(w http.ResponseWriter, resp *api.ChatResponse) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	choice := resp.Choices[0]

	chunk := func(delta api.Delta, finish *string) api.ChunkResponse {
		return api.ChunkResponse{
			ID:      resp.ID,
			Object:  "chat.completion.chunk",
			Created: resp.Created,
			Model:   resp.Model,
			Choices: []api.ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
	}

	send := func(c api.ChunkResponse) error {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}
		return rc.Flush()
	}

	if err := send(chunk(api.Delta{Role: "assistant"}, nil)); err != nil {
		return err
	}

	if len(choice.Message.ToolCalls) > 0 {
		for i, tc := range choice.Message.ToolCalls {
			delta := api.Delta{
				ToolCalls: []api.DeltaToolCall{{
					Index:    i,
					ID:       tc.ID,
					Type:     tc.Type,
					Function: tc.Function,
				}},
			}
			if err := send(chunk(delta, nil)); err != nil {
				return err
			}
		}
	} else if choice.Message.Content != nil {
		if err := send(chunk(api.Delta{Content: choice.Message.Content}, nil)); err != nil {
			return err
		}
	}

	finish := choice.FinishReason
	if err := send(chunk(api.Delta{}, &finish)); err != nil {
		return err
	}

	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write [DONE]: %w", err)
	}
	return rc.Flush()
}
