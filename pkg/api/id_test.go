package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCompletionID(t *testing.T) {
	id := NewCompletionID()
	assert.True(t, strings.HasPrefix(id, "chatcmpl-"))
	assert.Len(t, id, len("chatcmpl-")+24)
	assert.True(t, ValidateCompletionID(id))
}

func TestNewCompletionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewCompletionID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewToolCallID(t *testing.T) {
	id := NewToolCallID()
	assert.True(t, strings.HasPrefix(id, "call_"))
	assert.Len(t, id, len("call_")+24)
}

func TestValidateCompletionID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{name: "generated", id: NewCompletionID(), valid: true},
		{name: "empty", id: "", valid: false},
		{name: "wrong prefix", id: "cmpl-abcdefghijklmnopqrstuvwx", valid: false},
		{name: "too short", id: "chatcmpl-abc", valid: false},
		{name: "invalid characters", id: "chatcmpl-abcdefghijklmnopqrstuv!!", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateCompletionID(tt.id))
		})
	}
}
