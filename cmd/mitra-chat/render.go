// ABOUTME: Terminal renderer for formatted assistant nodes
// ABOUTME: Presentation only; nodes are rendered without re-interpreting markup

package main

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mitra/mitra-client/internal/format"
	"github.com/mitra/mitra-client/internal/store"
)

var (
	boldStyle   = color.New(color.Bold)
	italicStyle = color.New(color.Italic)
	codeStyle   = color.New(color.FgCyan)
	langStyle   = color.New(color.FgHiBlack)
)

// renderNodes writes a node sequence to w. Node text carries HTML-escaped
// entities from the formatter's safety pass; a terminal has no markup to
// inject into, so entities are unescaped for display.
func renderNodes(w io.Writer, nodes []format.Node) {
	for _, n := range nodes {
		text := html.UnescapeString(n.Text)
		switch n.Kind {
		case format.KindBold:
			boldStyle.Fprint(w, text)
		case format.KindItalic:
			italicStyle.Fprint(w, text)
		case format.KindCode:
			codeStyle.Fprint(w, text)
		case format.KindCodeBlock:
			fmt.Fprintln(w)
			langStyle.Fprintf(w, "  [%s]\n", n.Language)
			codeStyle.Fprintf(w, "  %s\n", indentLines(text))
		case format.KindBreak:
			fmt.Fprintln(w)
		default:
			fmt.Fprint(w, text)
		}
	}
}

// renderMessage formats a stored assistant message for replay.
func renderMessage(msg *store.Message) []format.Node {
	return format.Render(msg.Content)
}

func indentLines(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}
