package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// codeHostElements are elements whose text is treated as a verbatim code
// block. The UI nests <pre><code> inside a custom code-block element, so the
// walker fences the outermost match and skips its subtree.
var codeHostElements = map[string]bool{
	"code-block": true,
	"pre":        true,
}

// skippedElements contribute nothing to the extracted text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"button":   true,
	"svg":      true,
	"mat-icon": true,
}

// blockElements get surrounding newlines in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "ul": true, "ol": true, "table": true,
	"blockquote": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
}

var headingPrefix = map[string]string{
	"h1": "# ", "h2": "## ", "h3": "### ",
	"h4": "#### ", "h5": "##### ", "h6": "###### ",
}

// ParseReplyHTML converts the innerHTML of a response container into a
// RawReply: markdown-ish text with fenced code blocks, plus the list of
// code-block contents in document order.
func ParseReplyHTML(rawHTML string) (*RawReply, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reply HTML: %w", err)
	}

	var b strings.Builder
	reply := &RawReply{}
	walkReplyNode(doc, &b, reply)

	text := collapseBlankLines(b.String())
	// The UI escapes underscores in rendered markdown.
	text = strings.ReplaceAll(text, `\_`, "_")
	reply.Text = strings.TrimSpace(text)
	return reply, nil
}

func walkReplyNode(n *html.Node, b *strings.Builder, reply *RawReply) {
	switch n.Type {
	case html.CommentNode:
		return

	case html.TextNode:
		b.WriteString(n.Data)
		return

	case html.ElementNode:
		tag := strings.ToLower(n.Data)

		if skippedElements[tag] {
			return
		}

		if codeHostElements[tag] {
			code := strings.Trim(nodeText(n), "\n")
			reply.CodeBlocks = append(reply.CodeBlocks, code)
			lang := codeLanguage(n)
			b.WriteString("\n```" + lang + "\n")
			b.WriteString(code)
			b.WriteString("\n```\n")
			return
		}

		switch tag {
		case "br":
			b.WriteString("\n")
			return
		case "li":
			b.WriteString("\n- ")
		case "tr":
			b.WriteString("\n")
		case "td", "th":
			b.WriteString(" ")
		}

		if prefix, ok := headingPrefix[tag]; ok {
			b.WriteString("\n" + prefix)
		} else if blockElements[tag] {
			b.WriteString("\n")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkReplyNode(c, b, reply)
		}

		if blockElements[tag] {
			b.WriteString("\n")
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkReplyNode(c, b, reply)
	}
}

// nodeText returns the concatenated text content of a subtree.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// codeLanguage extracts a language hint from class="language-x" attributes
// anywhere in the code block subtree.
func codeLanguage(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(attr.Val) {
			if lang, ok := strings.CutPrefix(cls, "language-"); ok {
				return lang
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if lang := codeLanguage(c); lang != "" {
				return lang
			}
		}
	}
	return ""
}

// collapseBlankLines trims trailing whitespace per line and squeezes runs of
// blank lines down to one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
