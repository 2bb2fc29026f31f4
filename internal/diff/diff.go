// Package diff compares deck revisions line by line.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff line.
type Op int

const (
	Context Op = iota
	Added
	Removed
)

// Line is one line of a line diff. Line numbers are 1-based; zero means the
// line does not exist on that side.
type Line struct {
	Op      Op
	Text    string
	OldLine int
	NewLine int
}

// Stats counts changed lines.
type Stats struct {
	Added   int
	Removed int
}

func (s Stats) String() string {
	return fmt.Sprintf("+%d -%d", s.Added, s.Removed)
}

// Changed reports whether any line differs.
func (s Stats) Changed() bool { return s.Added > 0 || s.Removed > 0 }

// Lines diffs before and after at line granularity.
func Lines(before, after string) []Line {
	dmp := diffmatchpatch.New()
	beforeRunes, afterRunes, lineArray := linesToRunes(before, after)
	diffs := dmp.DiffMainRunes(beforeRunes, afterRunes, false)
	for i, d := range diffs {
		var b strings.Builder
		for _, r := range d.Text {
			b.WriteString(lineArray[runeToIndex(r)])
		}
		diffs[i].Text = b.String()
	}

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Op: Context, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Op: Removed, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Op: Added, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

// linesToRunes encodes each distinct line as one rune so the diff runs
// line by line. diffmatchpatch's own DiffLinesToChars and DiffLinesToRunes
// emit comma-separated indexes, which it then diffs character by
// character, so lines past the ninth get mixed up.
func linesToRunes(before, after string) ([]rune, []rune, []string) {
	lineArray := []string{""}
	index := map[string]int{}
	encode := func(text string) []rune {
		var out []rune
		for text != "" {
			end := strings.IndexByte(text, '\n') + 1
			if end == 0 {
				end = len(text)
			}
			line := text[:end]
			text = text[end:]
			n, ok := index[line]
			if !ok {
				lineArray = append(lineArray, line)
				n = len(lineArray) - 1
				index[line] = n
			}
			out = append(out, indexToRune(n))
		}
		return out
	}
	a := encode(before)
	b := encode(after)
	return a, b, lineArray
}

// Surrogates do not survive a []rune to string round trip, so indexes
// skip that range.
const surrogateMin, surrogateLen = 0xD800, 0x800

func indexToRune(n int) rune {
	if n >= surrogateMin {
		return rune(n + surrogateLen)
	}
	return rune(n)
}

func runeToIndex(r rune) int {
	if r >= surrogateMin+surrogateLen {
		return int(r) - surrogateLen
	}
	return int(r)
}

// Count returns the changed-line stats of before -> after.
func Count(before, after string) Stats {
	var s Stats
	for _, l := range Lines(before, after) {
		switch l.Op {
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		}
	}
	return s
}

// Unified renders a unified diff with the given number of context lines
// around each change. Identical inputs render as "".
func Unified(oldName, newName, before, after string, context int) string {
	lines := Lines(before, after)
	hunks := group(lines, context)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)
	for _, h := range hunks {
		writeHunk(&b, lines[h[0]:h[1]])
	}
	return b.String()
}

// group returns [start, end) index ranges of lines covering every change
// plus context lines either side, merging ranges that touch.
func group(lines []Line, context int) [][2]int {
	var hunks [][2]int
	for i, l := range lines {
		if l.Op == Context {
			continue
		}
		start := max(i-context, 0)
		end := min(i+context+1, len(lines))
		if n := len(hunks); n > 0 && start <= hunks[n-1][1] {
			hunks[n-1][1] = max(hunks[n-1][1], end)
			continue
		}
		hunks = append(hunks, [2]int{start, end})
	}
	return hunks
}

func writeHunk(b *strings.Builder, lines []Line) {
	oldStart, newStart := 0, 0
	oldCount, newCount := 0, 0
	for _, l := range lines {
		if l.OldLine > 0 {
			if oldStart == 0 {
				oldStart = l.OldLine
			}
			oldCount++
		}
		if l.NewLine > 0 {
			if newStart == 0 {
				newStart = l.NewLine
			}
			newCount++
		}
	}
	fmt.Fprintf(b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
	for _, l := range lines {
		switch l.Op {
		case Context:
			b.WriteString(" ")
		case Added:
			b.WriteString("+")
		case Removed:
			b.WriteString("-")
		}
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
}
