package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/gemweb/pkg/browser"
)

func decodeOne(t *testing.T, reply *browser.RawReply) map[string]any {
	t.Helper()
	calls, warning := parseToolCalls(reply.Text)
	require.Nil(t, warning)
	require.Len(t, calls, 1)
	repairArguments(calls, reply.CodeBlocks)
	return calls[0].Arguments
}

func TestRepair_ContentPlaceholder(t *testing.T) {
	reply := &browser.RawReply{
		Text:       `{"tool_calls": [{"name": "write_file", "arguments": {"path": "x.go", "content": "USE_CODE_BLOCK_ABOVE"}}]}`,
		CodeBlocks: []string{"package main\n\nfunc main() {}"},
	}
	args := decodeOne(t, reply)
	assert.Equal(t, "package main\n\nfunc main() {}", args["content"])
	assert.Equal(t, "x.go", args["path"])
}

func TestRepair_PlaceholderWithoutCodeBlockLeftAlone(t *testing.T) {
	reply := &browser.RawReply{
		Text: `{"tool_calls": [{"name": "write_file", "arguments": {"content": "USE_CODE_BLOCK_ABOVE"}}]}`,
	}
	args := decodeOne(t, reply)
	assert.Equal(t, PlaceholderCodeBlock, args["content"])
}

func TestRepair_EditPlaceholders(t *testing.T) {
	reply := &browser.RawReply{
		Text: `{"tool_calls": [{"name": "edit_file", "arguments": ` +
			`{"path": "x.go", "oldString": "USE_OLD_CODE_ABOVE", "newString": "USE_NEW_CODE_ABOVE"}}]}`,
		CodeBlocks: []string{"old code here", "new code here"},
	}
	args := decodeOne(t, reply)
	assert.Equal(t, "old code here", args["oldString"])
	assert.Equal(t, "new code here", args["newString"])
}

func TestRepair_SubstitutedBlocksKeptVerbatim(t *testing.T) {
	// Code blocks routinely contain literal \n, \t, and \" sequences as
	// source text. A correct placeholder reply must receive them untouched;
	// only inlined values get the unescape treatment.
	oldCode := `fmt.Printf("hello there\nworld\t%q\n", name)` + "\nreturn nil"
	newCode := `fmt.Printf("goodbye now\nworld\t%q\n", name)` + "\nreturn err"
	require.Greater(t, len(oldCode), 50)
	require.Greater(t, len(newCode), 50)

	reply := &browser.RawReply{
		Text: `{"tool_calls": [{"name": "edit_file", "arguments": ` +
			`{"path": "x.go", "oldString": "USE_OLD_CODE_ABOVE", "newString": "USE_NEW_CODE_ABOVE"}}]}`,
		CodeBlocks: []string{oldCode, newCode},
	}
	args := decodeOne(t, reply)
	assert.Equal(t, oldCode, args["oldString"])
	assert.Equal(t, newCode, args["newString"])
}

func TestRepair_SubstitutedContentKeptVerbatim(t *testing.T) {
	block := `log.Printf("row %d:\t%s\n", i, line)` + "\n" + `return strings.Split(s, "\n")`
	reply := &browser.RawReply{
		Text:       `{"tool_calls": [{"name": "write_file", "arguments": {"path": "x.go", "content": "USE_CODE_BLOCK_ABOVE"}}]}`,
		CodeBlocks: []string{block},
	}
	args := decodeOne(t, reply)
	assert.Equal(t, block, args["content"])
}

func TestRepair_EscapeDamagedContent(t *testing.T) {
	reply := &browser.RawReply{
		Text:       `{"tool_calls": [{"name": "write_file", "arguments": {"content": "package main\\N\\Ufunc x()"}}]}`,
		CodeBlocks: []string{"the real content"},
	}
	args := decodeOne(t, reply)
	assert.Equal(t, "the real content", args["content"])
}

func TestRepair_InlinedLongStringsUnescaped(t *testing.T) {
	inlined := `func main() {\n\tfmt.Println(\"hello\")\n\tfmt.Println(\"world\")\n}`
	reply := &browser.RawReply{
		Text: `{"tool_calls": [{"name": "edit_file", "arguments": {"oldString": "` + inlined + `", "newString": "short"}}]}`,
	}
	calls, warning := parseToolCalls(reply.Text)
	require.Nil(t, warning)
	require.Len(t, calls, 1)

	// Force the literal escapes through by injecting the raw value, as a
	// JSON round trip would already have consumed them.
	calls[0].Arguments["oldString"] = inlined
	repairArguments(calls, nil)

	old, _ := calls[0].Arguments["oldString"].(string)
	assert.Contains(t, old, "\n\tfmt.Println(\"hello\")")
	assert.NotContains(t, old, `\n`)
}

func TestRepair_OldPlaceholderLeakedIntoNewString(t *testing.T) {
	reply := &browser.RawReply{
		Text: `{"tool_calls": [{"name": "edit_file", "arguments": ` +
			`{"oldString": "USE_OLD_CODE_ABOVE", "newString": "USE_OLD_CODE_ABOVE extra line"}}]}`,
		CodeBlocks: []string{"the old code"},
	}
	args := decodeOne(t, reply)
	assert.Equal(t, "the old code", args["oldString"])
	newStr, _ := args["newString"].(string)
	assert.NotContains(t, newStr, PlaceholderOldCode)
	assert.Contains(t, newStr, "extra line")
}

func TestLooksEscapeDamaged(t *testing.T) {
	assert.True(t, looksEscapeDamaged(`bad \N escape`))
	assert.True(t, looksEscapeDamaged(`bad \U escape`))
	assert.True(t, looksEscapeDamaged("\n\nleading newlines"))
	assert.False(t, looksEscapeDamaged("normal content"))
	assert.False(t, looksEscapeDamaged(""))
}

func TestUnescapeLiteral(t *testing.T) {
	assert.Equal(t, "a\nb\tc\"d", unescapeLiteral(`a\nb\tc\"d`))
	assert.Equal(t, "plain", unescapeLiteral("plain"))
}
