// Package patch applies oracle proposals to deck source.
package patch

import (
	"fmt"
	"strings"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
)

var (
	ErrOldTextMissing   = fmt.Errorf("%w: old text not found", deck.ErrPatchNotApplicable)
	ErrOldTextAmbiguous = fmt.Errorf("%w: old text occurs more than once", deck.ErrPatchNotApplicable)
	ErrNoChange         = fmt.Errorf("%w: proposal leaves the document unchanged", deck.ErrPatchNotApplicable)
)

const (
	beginDocument = `\begin{document}`
	endDocument   = `\end{document}`
	documentClass = `\documentclass`
)

// Apply returns base with p applied. A patch's old text must occur exactly
// once. A full proposal is cleaned up by Normalize. Results identical to
// base are rejected.
func Apply(base string, p oracle.Proposal) (string, error) {
	var out string
	switch p.Mode {
	case oracle.ModePatch:
		n := occurrences(base, p.OldText)
		switch {
		case p.OldText == "" || n == 0:
			return "", ErrOldTextMissing
		case n > 1:
			return "", fmt.Errorf("%w (%d occurrences)", ErrOldTextAmbiguous, n)
		}
		out = strings.Replace(base, p.OldText, p.NewText, 1)
	case oracle.ModeFull:
		out = Normalize(base, p.NewText)
	default:
		return "", fmt.Errorf("%w: unknown proposal mode %q", deck.ErrPatchNotApplicable, p.Mode)
	}
	if out == base {
		return "", ErrNoChange
	}
	return out, nil
}

// occurrences counts every offset where sub starts in s, overlapping
// matches included. strings.Count skips overlaps, so "}}" in "}}}" would
// look unique.
func occurrences(s, sub string) int {
	if sub == "" {
		return 0
	}
	n := 0
	for i := 0; ; {
		j := strings.Index(s[i:], sub)
		if j < 0 {
			return n
		}
		n++
		i += j + 1
	}
}

// Normalize turns a model-written full document into something compilable:
// code fences are stripped, a missing preamble is taken from base and a
// missing \end{document} is appended.
func Normalize(base, text string) string {
	text = oracle.StripCodeFences(text)

	if !strings.Contains(text, documentClass) {
		preamble := Preamble(base)
		if strings.Contains(text, beginDocument) {
			// Keep the rewrite's own \begin{document}.
			preamble = strings.TrimSuffix(preamble, beginDocument+"\n")
		}
		text = preamble + text
	}

	if !strings.Contains(text, endDocument) {
		text = strings.TrimRight(text, "\n") + "\n" + endDocument
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

// Preamble returns base up to and including the \begin{document} line, or
// "" when base has none.
func Preamble(base string) string {
	i := strings.Index(base, beginDocument)
	if i < 0 {
		return ""
	}
	return base[:i] + beginDocument + "\n"
}
