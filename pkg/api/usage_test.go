package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens_Empty(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
}

func TestEstimateTokens_Positive(t *testing.T) {
	n := EstimateTokens("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, n, 0)
}

func TestEstimateTokens_Monotonic(t *testing.T) {
	short := EstimateTokens("hello")
	long := EstimateTokens(strings120())
	assert.Greater(t, long, short)
}

func TestEstimateUsage(t *testing.T) {
	usage := EstimateUsage("What is 2+2?", "2+2 equals 4.")
	assert.Greater(t, usage.PromptTokens, 0)
	assert.Greater(t, usage.CompletionTokens, 0)
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
}

func TestEstimateUsage_EmptyReply(t *testing.T) {
	usage := EstimateUsage("hello", "")
	assert.Equal(t, 0, usage.CompletionTokens)
	assert.Equal(t, usage.PromptTokens, usage.TotalTokens)
}

func strings120() string {
	s := ""
	for i := 0; i < 12; i++ {
		s += "lorem ipsum dolor sit amet "
	}
	return s
}
