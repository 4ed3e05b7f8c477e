// Package bridge translates between the API-level conversation schema and
// the free-text interface of the web UI. Encoding flattens an ordered
// message list (plus tool definitions) into one deterministic prompt;
// decoding turns the scraped reply back into structured content, detecting
// the tool-call marker format the encoder advertised.
//
// The marker format is a versioned contract between the two halves: encode
// instructs the model to emit it, decode recognizes it. Encode is
// deterministic; decode is best-effort and never fails: the UI is an
// uncontrolled text generator, so malformed output degrades to plain text.
package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/gemweb/pkg/api"
)

// MarkerVersion identifies the tool-call marker contract. Bump it whenever
// the format below changes so encode and decode evolve together.
const MarkerVersion = "v1"

// markerKey is the textual signature decode scans for.
const markerKey = `"tool_calls"`

// Placeholder values the model is told to use instead of inlining large
// content into JSON strings. Decode substitutes them from the fenced code
// blocks accompanying the marker.
const (
	PlaceholderCodeBlock = "USE_CODE_BLOCK_ABOVE"
	PlaceholderOldCode   = "USE_OLD_CODE_ABOVE"
	PlaceholderNewCode   = "USE_NEW_CODE_ABOVE"
)

// PromptTooLargeError rejects a conversation whose flattened prompt exceeds
// the UI's input capacity. Raised before anything touches the browser.
type PromptTooLargeError struct {
	Size  int
	Limit int
}

func (e *PromptTooLargeError) Error() string {
	return fmt.Sprintf("flattened prompt is %d characters, limit is %d", e.Size, e.Limit)
}

// Encoder flattens conversations into single prompts.
type Encoder struct {
	// CharLimit bounds the flattened prompt size; 0 disables the check.
	CharLimit int
}

// Encode renders the conversation into one instructional prompt. The output
// is deterministic for a given message list and tool set.
func (e *Encoder) Encode(messages []api.Message, tools []api.Tool) (string, error) {
	var sections []string

	if len(tools) > 0 {
		sections = append(sections, renderToolsBlock(tools))
	}

	for _, msg := range messages {
		content := msg.Text()
		switch msg.Role {
		case "system":
			if content != "" {
				sections = append(sections, "System Instructions:\n"+content)
			}
		case "user":
			sections = append(sections, "User: "+content)
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				sections = append(sections, "Assistant: "+renderPriorToolCalls(msg.ToolCalls))
			} else if content != "" {
				sections = append(sections, "Assistant: "+content)
			}
		case "tool":
			name := msg.Name
			if name == "" {
				name = "tool"
			}
			sections = append(sections, fmt.Sprintf("Tool Result (%s):\n%s", name, content))
		}
	}

	prompt := strings.Join(sections, "\n\n")
	if e.CharLimit > 0 && len(prompt) > e.CharLimit {
		return "", &PromptTooLargeError{Size: len(prompt), Limit: e.CharLimit}
	}
	return prompt, nil
}

// renderPriorToolCalls re-serializes earlier assistant tool calls into the
// marker format, so the model sees its own past calls the way it is asked
// to produce new ones.
func renderPriorToolCalls(calls []api.ToolCall) string {
	type markerCall struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	out := struct {
		ToolCalls []markerCall `json:"tool_calls"`
	}{}

	for _, tc := range calls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args, _ = json.Marshal(tc.Function.Arguments)
		}
		out.ToolCalls = append(out.ToolCalls, markerCall{Name: tc.Function.Name, Arguments: args})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// renderToolsBlock builds the instruction preamble describing the available
// tools and the marker format for calling them.
func renderToolsBlock(tools []api.Tool) string {
	var b strings.Builder

	b.WriteString("## Tool Calling (" + MarkerVersion + ")\n\n")
	b.WriteString("You have access to the tools listed below. To call one or more tools,\n")
	b.WriteString("reply with a single JSON object in exactly this format:\n\n")
	b.WriteString(`{"tool_calls": [{"name": "<tool name>", "arguments": {<parameters>}}]}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- When calling tools, reply with the JSON object and nothing else.\n")
	b.WriteString("- Do not wrap the JSON in a code block, and do not use YAML.\n")
	b.WriteString("- Never place file contents or code directly inside JSON strings.\n")
	b.WriteString("  Put the content in a fenced markdown code block above the JSON and\n")
	b.WriteString("  use the placeholder \"" + PlaceholderCodeBlock + "\" as the value.\n")
	b.WriteString("- For edit-style tools, put the code to find in a first code block and\n")
	b.WriteString("  the replacement in a second one, then use \"" + PlaceholderOldCode + "\"\n")
	b.WriteString("  and \"" + PlaceholderNewCode + "\" as the respective argument values.\n")
	b.WriteString("\n### Available tools\n\n")

	for _, tool := range tools {
		fn := tool.Function
		b.WriteString("- " + fn.Name)
		if fn.Description != "" {
			b.WriteString(" - " + fn.Description)
		}
		b.WriteString("\n")
		writeToolParams(&b, fn.Parameters)
	}

	return strings.TrimRight(b.String(), "\n")
}

// writeToolParams renders a JSON-schema parameter object as indented lines.
// Property names are sorted so the prompt is deterministic.
func writeToolParams(b *strings.Builder, params map[string]any) {
	props, ok := params["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return
	}

	required := map[string]bool{}
	if reqList, ok := params["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info, _ := props[name].(map[string]any)
		ptype, _ := info["type"].(string)
		desc, _ := info["description"].(string)

		line := "    " + name
		if ptype != "" {
			line += " (" + ptype + ")"
		}
		if required[name] {
			line += " [required]"
		}
		if desc != "" {
			line += ": " + desc
		}
		b.WriteString(line + "\n")
	}
}
