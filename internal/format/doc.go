// Package format turns raw assistant text into a safe, structured node list.
//
// Rendering is a pure function: no state, no I/O. The pipeline is a small
// staged tokenizer rather than chained string substitutions, so each stage
// works on whole text runs and the output needs no further markup
// interpretation by the presentation layer.
//
// Stage order is load-bearing:
//
//  1. Escape markup-significant characters
//  2. Extract fenced code blocks (non-greedy)
//  3. Inline code spans
//  4. Bold (before italics, so ** pairs are not read as two * markers)
//  5. Italics
//  6. Newlines to explicit break nodes
//
// Confidence and source metadata from the backend are not the formatter's
// concern; it sees only the reply text.
package format
