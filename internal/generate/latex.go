package generate

import "strings"

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// EscapeLaTeX escapes the characters LaTeX treats specially in text mode.
func EscapeLaTeX(s string) string {
	return latexEscaper.Replace(s)
}

func joinAuthors(authors []string) string {
	escaped := make([]string, len(authors))
	for i, a := range authors {
		escaped[i] = EscapeLaTeX(a)
	}
	return strings.Join(escaped, ` \and `)
}
