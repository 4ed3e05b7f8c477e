package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Text_String(t *testing.T) {
	msg := Message{Role: "user", Content: json.RawMessage(`"Hello!"`)}
	assert.Equal(t, "Hello!", msg.Text())
}

func TestMessage_Text_Parts(t *testing.T) {
	msg := Message{
		Role:    "user",
		Content: json.RawMessage(`[{"type":"text","text":"first"},{"type":"text","text":"second"}]`),
	}
	assert.Equal(t, "first\nsecond", msg.Text())
}

func TestMessage_Text_SkipsNonTextParts(t *testing.T) {
	msg := Message{
		Role:    "user",
		Content: json.RawMessage(`[{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"caption"}]`),
	}
	assert.Equal(t, "caption", msg.Text())
}

func TestMessage_Text_Empty(t *testing.T) {
	tests := []struct {
		name    string
		content json.RawMessage
	}{
		{name: "nil content", content: nil},
		{name: "unrecognized shape", content: json.RawMessage(`{"foo":1}`)},
		{name: "empty string", content: json.RawMessage(`""`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{Role: "user", Content: tt.content}
			assert.Equal(t, "", msg.Text())
		})
	}
}

func TestChatRequest_Unmarshal(t *testing.T) {
	body := `{
		"model": "gemini-web",
		"messages": [{"role": "user", "content": "Hello!"}],
		"stream": true,
		"timeout": 30,
		"temperature": 0.7
	}`

	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, "gemini-web", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "Hello!", req.Messages[0].Text())
	assert.True(t, req.Stream)
	assert.Equal(t, 30, req.TimeoutSeconds)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-9)
}

func TestChatRequest_ReplyTimeout(t *testing.T) {
	fallback := 5 * time.Minute

	req := &ChatRequest{}
	assert.Equal(t, fallback, req.ReplyTimeout(fallback))

	req.TimeoutSeconds = 45
	assert.Equal(t, 45*time.Second, req.ReplyTimeout(fallback))
}

func TestResponseMessage_NullContentForToolCalls(t *testing.T) {
	msg := ResponseMessage{
		Role: "assistant",
		ToolCalls: []ToolCall{{
			ID:       "call_abc",
			Type:     "function",
			Function: FunctionCall{Name: "read_file", Arguments: `{"path":"main.go"}`},
		}},
	}

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"content":null`)
}

func TestResponseMessage_ContentPresent(t *testing.T) {
	content := "Hi there!"
	msg := ResponseMessage{Role: "assistant", Content: &content}

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"content":"Hi there!"`)
}
