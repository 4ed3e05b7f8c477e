package api

import "fmt"

var validRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// Validate checks the structural validity of a chat request. It returns an
// *APIError describing the first problem found, or nil.
func (r *ChatRequest) Validate() *APIError {
	if len(r.Messages) == 0 {
		return NewInvalidRequestError("messages", "at least one message is required")
	}

	for i, msg := range r.Messages {
		if msg.Role == "" {
			return NewInvalidRequestError(fmt.Sprintf("messages[%d].role", i), "role is required")
		}
		if !validRoles[msg.Role] {
			return NewInvalidRequestError(fmt.Sprintf("messages[%d].role", i),
				fmt.Sprintf("unsupported role %q", msg.Role))
		}
	}

	for i, tool := range r.Tools {
		if tool.Type != "function" {
			return NewInvalidRequestError(fmt.Sprintf("tools[%d].type", i),
				fmt.Sprintf("unsupported tool type %q", tool.Type))
		}
		if tool.Function.Name == "" {
			return NewInvalidRequestError(fmt.Sprintf("tools[%d].function.name", i), "function name is required")
		}
	}

	return nil
}

// ModelOrDefault returns the requested model name or DefaultModel.
func (r *ChatRequest) ModelOrDefault() string {
	if r.Model == "" {
		return DefaultModel
	}
	return r.Model
}
