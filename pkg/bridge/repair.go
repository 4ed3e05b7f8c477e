package bridge

import "strings"

// contentKeys are argument names that carry file-sized payloads and are
// therefore subject to code-block placeholder substitution.
var contentKeys = []string{"content", "file_text"}

// repairArguments applies the placeholder and escape-damage repairs to
// parsed tool calls, substituting fenced code blocks extracted alongside
// the marker. Models reliably mangle large strings inside JSON, so the
// contract moves them out of band; this is the receiving half.
func repairArguments(calls []rawCall, codeBlocks []string) {
	for i := range calls {
		repairCall(&calls[i], codeBlocks)
	}
}

func repairCall(c *rawCall, codeBlocks []string) {
	for _, key := range contentKeys {
		raw, ok := c.Arguments[key]
		if !ok {
			continue
		}
		val, _ := raw.(string)
		if (val == PlaceholderCodeBlock || looksEscapeDamaged(val)) && len(codeBlocks) > 0 {
			c.Arguments[key] = codeBlocks[0]
		}
	}

	oldVal, _ := c.Arguments["oldString"].(string)
	newVal, _ := c.Arguments["newString"].(string)
	if oldVal == "" && newVal == "" {
		return
	}

	// Correct placeholder usage: first block is the old code, second the new.
	// oldVal and newVal deliberately keep their pre-substitution values: the
	// checks below must see what the model wrote, not the verbatim block.
	if oldVal == PlaceholderOldCode && len(codeBlocks) >= 1 {
		c.Arguments["oldString"] = codeBlocks[0]
	}
	if newVal == PlaceholderNewCode && len(codeBlocks) >= 2 {
		c.Arguments["newString"] = codeBlocks[1]
	}

	// Code inlined directly despite the placeholder instruction: unescape
	// the literal \n, \t, and \" sequences the model produced.
	if oldVal != "" && oldVal != PlaceholderOldCode && len(oldVal) > 50 {
		c.Arguments["oldString"] = unescapeLiteral(oldVal)
	}
	if newVal != "" && newVal != PlaceholderNewCode && len(newVal) > 50 {
		c.Arguments["newString"] = unescapeLiteral(newVal)
	}

	// The old-code placeholder leaking into newString: strip it and keep
	// whatever followed.
	if newVal != PlaceholderNewCode && strings.Contains(newVal, PlaceholderOldCode) {
		fixed := strings.TrimSpace(strings.ReplaceAll(newVal, PlaceholderOldCode, ""))
		fixed = strings.TrimPrefix(fixed, `\n`)
		c.Arguments["newString"] = unescapeLiteral(fixed)
	}
}

// looksEscapeDamaged detects strings that went through a broken JSON escape
// round trip (uppercase escape sequences or leading literal newlines).
func looksEscapeDamaged(val string) bool {
	return strings.Contains(val, `\N`) ||
		strings.Contains(val, `\U`) ||
		strings.HasPrefix(val, "\n\n") ||
		strings.HasPrefix(val, `\n\n`)
}

// unescapeLiteral converts literal backslash escapes into their characters.
func unescapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}
