package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IssueKind classifies one engine error.
type IssueKind string

const (
	IssueLaTeX     IssueKind = "latex"
	IssuePackage   IssueKind = "package"
	IssueUndefined IssueKind = "undefined-control-sequence"
	IssueMissing   IssueKind = "missing-inserted"
	IssueFile      IssueKind = "file-not-found"
	IssueTimeout   IssueKind = "timeout"
	IssueOther     IssueKind = "other"
	IssueWarning   IssueKind = "warning"
)

// Issue is one parsed error. Line is the source line hint from the engine's
// "l.<n>" marker, or 0 when there was none.
type Issue struct {
	Kind    IssueKind
	Message string
	Line    int
}

// Summary is the structured view of a failed compile's output.
type Summary struct {
	Errors   []Issue
	Warnings []string
}

var (
	reLaTeXError   = regexp.MustCompile(`^! LaTeX Error: (.*)$`)
	rePackageError = regexp.MustCompile(`^! Package (\S+) Error: (.*)$`)
	reUndefined    = regexp.MustCompile(`^! Undefined control sequence\.?`)
	reMissing      = regexp.MustCompile(`^! Missing (.*?) inserted\.?`)
	reMissingFile  = regexp.MustCompile("^! (?:LaTeX Error: )?(?:I can't find file|File) [`'](.*?)'")
	reOtherError   = regexp.MustCompile(`^! (.*)$`)
	reLineHint     = regexp.MustCompile(`^l\.(\d+)\s?(.*)$`)
	reWarning      = regexp.MustCompile(`LaTeX Warning: (.*)$`)
	reTimeout      = regexp.MustCompile(`^compile timed out after (.*)$`)
)

// ParseDiagnostics extracts every error in engine output, in order, with
// the line hint that follows it.
func ParseDiagnostics(output string) Summary {
	var sum Summary
	lines := strings.Split(output, "\n")

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")

		if m := reTimeout.FindStringSubmatch(line); m != nil {
			sum.Errors = append(sum.Errors, Issue{Kind: IssueTimeout, Message: "timed out after " + m[1]})
			continue
		}
		if m := reWarning.FindStringSubmatch(line); m != nil {
			sum.Warnings = append(sum.Warnings, m[1])
			continue
		}
		if !strings.HasPrefix(line, "! ") {
			continue
		}

		issue := classify(line)
		if issue.Kind == IssueUndefined && i+1 < len(lines) {
			// The engine prints the offending macro on the next line.
			if next := strings.TrimSpace(lines[i+1]); next != "" && !strings.HasPrefix(next, "l.") {
				issue.Message = "Undefined control sequence " + lastToken(next)
			}
		}
		for j := i + 1; j < len(lines) && j <= i+8; j++ {
			if m := reLineHint.FindStringSubmatch(strings.TrimSpace(lines[j])); m != nil {
				issue.Line, _ = strconv.Atoi(m[1])
				if issue.Kind == IssueUndefined && m[2] != "" && !strings.Contains(issue.Message, `\`) {
					issue.Message = "Undefined control sequence " + lastToken(m[2])
				}
				break
			}
			if strings.HasPrefix(lines[j], "! ") {
				break
			}
		}
		sum.Errors = append(sum.Errors, issue)
	}
	return sum
}

func classify(line string) Issue {
	switch {
	case reMissingFile.MatchString(line):
		m := reMissingFile.FindStringSubmatch(line)
		return Issue{Kind: IssueFile, Message: fmt.Sprintf("file not found: %s", m[1])}
	case reLaTeXError.MatchString(line):
		return Issue{Kind: IssueLaTeX, Message: reLaTeXError.FindStringSubmatch(line)[1]}
	case rePackageError.MatchString(line):
		m := rePackageError.FindStringSubmatch(line)
		return Issue{Kind: IssuePackage, Message: fmt.Sprintf("%s Error: %s", m[1], m[2])}
	case reUndefined.MatchString(line):
		return Issue{Kind: IssueUndefined, Message: "Undefined control sequence"}
	case reMissing.MatchString(line):
		return Issue{Kind: IssueMissing, Message: fmt.Sprintf("Missing %s inserted", reMissing.FindStringSubmatch(line)[1])}
	default:
		return Issue{Kind: IssueOther, Message: reOtherError.FindStringSubmatch(line)[1]}
	}
}

// lastToken returns the trailing control sequence of an engine context
// line such as "l.12 \foo".
func lastToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[len(fields)-1]
}

// Empty reports whether nothing was recognised.
func (s Summary) Empty() bool {
	return len(s.Errors) == 0 && len(s.Warnings) == 0
}

// String renders the summary as a short list, one issue per line.
func (s Summary) String() string {
	var b strings.Builder
	for _, e := range s.Errors {
		if e.Line > 0 {
			fmt.Fprintf(&b, "[%s] line %d: %s\n", e.Kind, e.Line, e.Message)
		} else {
			fmt.Fprintf(&b, "[%s] %s\n", e.Kind, e.Message)
		}
	}
	if len(s.Errors) == 0 {
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "[%s] %s\n", IssueWarning, w)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Headline returns the first error message, or the first warning when
// there are no errors.
func (s Summary) Headline() string {
	if len(s.Errors) > 0 {
		return s.Errors[0].Message
	}
	if len(s.Warnings) > 0 {
		return "warning: " + s.Warnings[0]
	}
	return ""
}
