package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors names every DOM hook the driver touches in the target UI.
// Keeping them in one overridable place means selector drift is first fixed
// by configuration, and only structural changes need a code update.
type Selectors struct {
	// InputHost is the element whose presence means "logged in and ready".
	InputHost string `yaml:"input_host"`

	// InputEditor is the editable region the prompt is typed into.
	InputEditor string `yaml:"input_editor"`

	// SendButton submits the prompt. Falls back to pressing Enter when
	// the button cannot be found.
	SendButton string `yaml:"send_button"`

	// ResponsePrefix matches response containers by id prefix; the driver
	// queries `div[id^="<ResponsePrefix>"]`.
	ResponsePrefix string `yaml:"response_prefix"`

	// NewChatButton starts a fresh conversation.
	NewChatButton string `yaml:"new_chat_button"`
}

// DefaultSelectors returns the selector set for the current Gemini web UI.
func DefaultSelectors() Selectors {
	return Selectors{
		InputHost:      "rich-textarea",
		InputEditor:    "rich-textarea .ql-editor",
		SendButton:     `button[aria-label="Send message"]`,
		ResponsePrefix: "model-response-message-content",
		NewChatButton:  `side-nav-action-button[data-test-id="new-chat-button"]`,
	}
}

// LoadSelectors returns the default selectors, overlaid with any fields set
// in the YAML file at path. An empty path returns the defaults unchanged.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("failed to read selector file %s: %w", path, err)
	}

	var overrides Selectors
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return sel, fmt.Errorf("failed to parse selector file %s: %w", path, err)
	}

	if overrides.InputHost != "" {
		sel.InputHost = overrides.InputHost
	}
	if overrides.InputEditor != "" {
		sel.InputEditor = overrides.InputEditor
	}
	if overrides.SendButton != "" {
		sel.SendButton = overrides.SendButton
	}
	if overrides.ResponsePrefix != "" {
		sel.ResponsePrefix = overrides.ResponsePrefix
	}
	if overrides.NewChatButton != "" {
		sel.NewChatButton = overrides.NewChatButton
	}
	return sel, nil
}

// ResponseSelector returns the CSS selector matching response containers.
func (s Selectors) ResponseSelector() string {
	return fmt.Sprintf(`div[id^=%q]`, s.ResponsePrefix)
}
