// ABOUTME: Pure transform from raw assistant text to safe renderable nodes
// ABOUTME: Staged tokenizer - escape, code fences, inline code, bold, italic, breaks

package format

import (
	"html"
	"strings"
)

// Kind identifies what a Node renders as.
type Kind int

const (
	KindText Kind = iota
	KindBold
	KindItalic
	KindCode      // inline code span
	KindCodeBlock // fenced code block
	KindBreak     // explicit line break
)

// DefaultLanguage labels a code block whose fence carried no language token.
const DefaultLanguage = "code"

// Node is one renderable unit. Text holds the content for text, bold,
// italic, and code kinds; code blocks use Language and Text together.
// The presentation layer renders nodes without re-interpreting any markup.
type Node struct {
	Kind     Kind
	Text     string
	Language string
}

// Render transforms raw assistant text into a flat node sequence.
//
// Stages run in a fixed order that later stages depend on: all
// markup-significant characters are escaped first, so nothing a later stage
// wraps in a structural node can smuggle markup through. Fenced code blocks
// are carved out before inline spans so backticks inside a fence are never
// treated as inline code. Bold runs before italics so the asterisks of a
// **bold** pair are never misread as two italic markers.
func Render(raw string) []Node {
	nodes := []Node{{Kind: KindText, Text: html.EscapeString(raw)}}
	nodes = applyToText(nodes, splitCodeBlocks)
	nodes = applyToText(nodes, func(text string) []Node {
		return splitDelimited(text, "`", KindCode)
	})
	nodes = applyToText(nodes, func(text string) []Node {
		return splitDelimited(text, "**", KindBold)
	})
	nodes = applyToText(nodes, func(text string) []Node {
		return splitDelimited(text, "*", KindItalic)
	})
	nodes = applyToText(nodes, splitBreaks)
	return nodes
}

// applyToText runs a stage over plain-text nodes only, leaving nodes
// produced by earlier stages untouched.
func applyToText(nodes []Node, stage func(string) []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != KindText {
			out = append(out, n)
			continue
		}
		out = append(out, stage(n.Text)...)
	}
	return out
}

// splitCodeBlocks extracts fenced blocks: three backticks, an optional
// language token and line break, inner text, and the nearest closing fence.
// An unclosed fence stays literal text.
func splitCodeBlocks(text string) []Node {
	var out []Node
	rest := text
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			break
		}
		after := rest[open+3:]
		closing := strings.Index(after, "```")
		if closing < 0 {
			break
		}

		if open > 0 {
			out = append(out, Node{Kind: KindText, Text: rest[:open]})
		}

		inner := after[:closing]
		lang := DefaultLanguage
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
			if tok := strings.TrimSpace(inner[:nl]); isLanguageToken(tok) {
				lang = tok
				inner = inner[nl+1:]
			}
		}
		out = append(out, Node{
			Kind:     KindCodeBlock,
			Language: lang,
			Text:     strings.TrimSpace(inner),
		})

		rest = after[closing+3:]
	}
	if rest != "" {
		out = append(out, Node{Kind: KindText, Text: rest})
	}
	return out
}

// isLanguageToken reports whether the first fence line is a language name
// rather than code. Anything beyond a short bare word is treated as code.
func isLanguageToken(tok string) bool {
	if tok == "" || len(tok) > 20 {
		return false
	}
	for _, r := range tok {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '+' || r == '#':
		default:
			return false
		}
	}
	return true
}

// splitDelimited extracts delimiter-wrapped runs that contain no occurrence
// of the delimiter character themselves. A lone or mismatched delimiter
// stays literal text.
func splitDelimited(text, delim string, kind Kind) []Node {
	var out []Node
	rest := text
	for {
		open := strings.Index(rest, delim)
		if open < 0 {
			break
		}
		innerStart := open + len(delim)

		// The run must be free of the delimiter character, so the nearest
		// one after the opening has to begin the closing delimiter.
		next := strings.IndexByte(rest[innerStart:], delim[0])
		if next < 0 {
			break
		}
		closeAt := innerStart + next
		if next == 0 || !strings.HasPrefix(rest[closeAt:], delim) {
			// Empty run or a stray delimiter character; keep the opening
			// delimiter literal and move on.
			out = append(out, Node{Kind: KindText, Text: rest[:innerStart]})
			rest = rest[innerStart:]
			continue
		}

		if open > 0 {
			out = append(out, Node{Kind: KindText, Text: rest[:open]})
		}
		out = append(out, Node{Kind: kind, Text: rest[innerStart:closeAt]})
		rest = rest[closeAt+len(delim):]
	}
	if rest != "" {
		out = append(out, Node{Kind: KindText, Text: rest})
	}
	return out
}

// splitBreaks converts remaining newlines into explicit break nodes.
func splitBreaks(text string) []Node {
	var out []Node
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			out = append(out, Node{Kind: KindBreak})
		}
		if line != "" {
			out = append(out, Node{Kind: KindText, Text: line})
		}
	}
	return out
}
