package bridge

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/entrhq/gemweb/pkg/api"
	"github.com/entrhq/gemweb/pkg/browser"
)

// ToolParseWarning records a detected tool-call marker that could not be
// parsed. It is data, not an error: the caller returns the raw text to the
// client and drops the tool call.
type ToolParseWarning struct {
	Reason  string
	Snippet string
}

// Decoded is the structured result of interpreting a raw reply.
type Decoded struct {
	// Content is the plain-text reply. Empty when ToolCalls is set.
	Content string

	// ToolCalls holds structured calls parsed from the marker format.
	ToolCalls []api.ToolCall

	// Warning is set when a marker was detected but unparseable.
	Warning *ToolParseWarning
}

// rawCall is the marker-format shape of one tool call.
type rawCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// bareCallPattern matches a standalone {"name": ..., "arguments": {...}}
// object; the last-resort extraction when the surrounding structure is
// mangled.
var bareCallPattern = regexp.MustCompile(`\{\s*"name"\s*:\s*"([^"]+)"\s*,\s*"arguments"\s*:\s*(\{[^{}]*\})`)

// Decode interprets a raw reply, extracting tool calls when expectTools is
// set. It never fails: a malformed marker degrades to plain content plus a
// warning.
func Decode(reply *browser.RawReply, expectTools bool) *Decoded {
	text := strings.ReplaceAll(reply.Text, `\_`, "_")

	if !expectTools {
		return &Decoded{Content: text}
	}

	calls, warning := parseToolCalls(text)
	if warning != nil {
		return &Decoded{Content: text, Warning: warning}
	}
	if len(calls) == 0 {
		return &Decoded{Content: text}
	}

	repairArguments(calls, reply.CodeBlocks)

	out := make([]api.ToolCall, 0, len(calls))
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		out = append(out, api.ToolCall{
			ID:   api.NewToolCallID(),
			Type: "function",
			Function: api.FunctionCall{
				Name:      c.Name,
				Arguments: string(args),
			},
		})
	}
	return &Decoded{ToolCalls: out}
}

// parseToolCalls tries the marker formats in order of fidelity. It returns
// (nil, nil) when no marker is present, and (nil, warning) when a marker is
// present but every parse fails.
func parseToolCalls(text string) ([]rawCall, *ToolParseWarning) {
	markerAt := strings.Index(text, markerKey)
	yamlAt := strings.Index(text, "tool_calls:")
	if markerAt == -1 && yamlAt == -1 {
		if calls := parseBareCalls(text); len(calls) > 0 {
			return calls, nil
		}
		return nil, nil
	}

	if markerAt != -1 {
		if calls := parseMarkerJSON(text, markerAt); len(calls) > 0 {
			return calls, nil
		}
	}
	if yamlAt != -1 {
		if calls := parseYAMLStyle(text); len(calls) > 0 {
			return calls, nil
		}
	}
	if calls := parseBareCalls(text); len(calls) > 0 {
		return calls, nil
	}

	at := markerAt
	if at == -1 {
		at = yamlAt
	}
	return nil, &ToolParseWarning{
		Reason:  "tool-call marker detected but not parseable",
		Snippet: snippet(text[at:], 120),
	}
}

// parseMarkerJSON extracts the bracket-balanced array following the
// "tool_calls" key and unmarshals it.
func parseMarkerJSON(text string, markerAt int) []rawCall {
	arrStart := strings.Index(text[markerAt:], "[")
	if arrStart == -1 {
		return nil
	}
	arrStart += markerAt

	arr, ok := balancedSlice(text[arrStart:], '[', ']')
	if !ok {
		return nil
	}

	var calls []rawCall
	if err := json.Unmarshal([]byte(arr), &calls); err != nil {
		return nil
	}
	return validCalls(calls)
}

// balancedSlice returns the prefix of s spanning one balanced open/close
// pair, tracking JSON string state so brackets inside strings don't count.
func balancedSlice(s string, open, close byte) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// parseYAMLStyle handles the model emitting a YAML-ish list despite the
// instructions:
//
//	tool_calls:
//	- name: read
//	  arguments:
//	    filePath: /tmp/x
func parseYAMLStyle(text string) []rawCall {
	var (
		calls   []rawCall
		current *rawCall
		inArgs  bool
	)

	flush := func() {
		if current != nil {
			calls = append(calls, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(stripped, "- name:"):
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(stripped, "- name:"))
			current = &rawCall{Name: name, Arguments: map[string]any{}}
			inArgs = false
		case stripped == "arguments:" && current != nil:
			inArgs = true
		case inArgs && current != nil && strings.Contains(stripped, ":") && !strings.HasPrefix(stripped, "-"):
			key, val, _ := strings.Cut(stripped, ":")
			current.Arguments[strings.TrimSpace(key)] = strings.TrimSpace(val)
		}
	}
	flush()
	return validCalls(calls)
}

// parseBareCalls scans for standalone name/arguments objects.
func parseBareCalls(text string) []rawCall {
	matches := bareCallPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]rawCall, 0, len(matches))
	for _, m := range matches {
		args := map[string]any{}
		// A mangled argument object still yields a call with empty args.
		_ = json.Unmarshal([]byte(m[2]), &args)
		calls = append(calls, rawCall{Name: m[1], Arguments: args})
	}
	return validCalls(calls)
}

func validCalls(calls []rawCall) []rawCall {
	out := calls[:0]
	for _, c := range calls {
		if c.Name == "" {
			continue
		}
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
