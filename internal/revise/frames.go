package revise

import (
	"regexp"
	"strconv"
	"strings"
)

// Frame is one \begin{frame} ... \end{frame} block of a deck.
type Frame struct {
	Title string
	Text  string
}

const (
	beginFrame = `\begin{frame}`
	endFrame   = `\end{frame}`
)

var (
	reFrameTitle   = regexp.MustCompile(`\\frametitle\s*\{([^}]*)\}`)
	reInlineTitle  = regexp.MustCompile(`^\s*(?:\[[^\]]*\])?\s*\{([^}]*)\}`)
	rePage         = regexp.MustCompile(`(?i)\bpage\s*(\d+)|第\s*(\d+)\s*页`)
	reSlide        = regexp.MustCompile(`(?i)\bslide\s*(\d+)|第\s*(\d+)\s*张`)
	reOrdinal      = regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\s+(slide|page)\b`)
	reChineseIndex = regexp.MustCompile(`第([一二三四五六七八九十]+)([页张])`)
)

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

// Frames splits text into its frames, in document order.
func Frames(text string) []Frame {
	var frames []Frame
	rest := text
	for {
		i := strings.Index(rest, beginFrame)
		if i < 0 {
			return frames
		}
		j := strings.Index(rest[i:], endFrame)
		if j < 0 {
			return frames
		}
		block := rest[i : i+j+len(endFrame)]
		frames = append(frames, Frame{Title: frameTitle(block), Text: block})
		rest = rest[i+j+len(endFrame):]
	}
}

func frameTitle(block string) string {
	if m := reFrameTitle.FindStringSubmatch(block); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reInlineTitle.FindStringSubmatch(block[len(beginFrame):]); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// FrameByTitle returns the first frame whose title is title.
func FrameByTitle(text, title string) (Frame, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Frame{}, false
	}
	for _, f := range Frames(text) {
		if f.Title == title {
			return f, true
		}
	}
	return Frame{}, false
}

// ContentFrame returns the n-th (1-based) frame that is neither the title
// page nor the table of contents.
func ContentFrame(text string, n int) (Frame, bool) {
	if n < 1 {
		return Frame{}, false
	}
	i := 0
	for _, f := range Frames(text) {
		if strings.Contains(f.Text, `\titlepage`) || strings.Contains(f.Text, `\tableofcontents`) {
			continue
		}
		i++
		if i == n {
			return f, true
		}
	}
	return Frame{}, false
}

// TargetSlide finds the plan slide number that feedback points at. Page
// numbers count the rendered pages, so the title page and, when toc is
// set, the outline page come first. It returns false when feedback names no
// slide, or names a page that is not a content slide.
func TargetSlide(feedback string, toc bool) (int, bool) {
	offset := 1
	if toc {
		offset = 2
	}
	fromPage := func(page int) (int, bool) {
		if page-offset < 1 {
			return 0, false
		}
		return page - offset, true
	}

	if m := rePage.FindStringSubmatch(feedback); m != nil {
		return fromPage(firstNumber(m[1:]))
	}
	if m := reSlide.FindStringSubmatch(feedback); m != nil {
		n := firstNumber(m[1:])
		return n, n > 0
	}
	if m := reChineseIndex.FindStringSubmatch(feedback); m != nil {
		n := chineseNumber(m[1])
		if m[2] == "页" {
			return fromPage(n)
		}
		return n, n > 0
	}
	if m := reOrdinal.FindStringSubmatch(feedback); m != nil {
		n := ordinals[strings.ToLower(m[1])]
		if strings.EqualFold(m[2], "page") {
			return fromPage(n)
		}
		return n, true
	}
	return 0, false
}

func firstNumber(groups []string) int {
	for _, g := range groups {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err == nil {
			return n
		}
	}
	return 0
}

// chineseNumber reads 1 through 99 written with 一 to 十.
func chineseNumber(s string) int {
	digits := map[rune]int{'一': 1, '二': 2, '三': 3, '四': 4, '五': 5, '六': 6, '七': 7, '八': 8, '九': 9}
	r := []rune(s)
	switch {
	case len(r) == 1 && r[0] == '十':
		return 10
	case len(r) == 1:
		return digits[r[0]]
	case len(r) == 2 && r[0] == '十':
		return 10 + digits[r[1]]
	case len(r) == 2 && r[1] == '十':
		return digits[r[0]] * 10
	case len(r) == 3 && r[1] == '十':
		return digits[r[0]]*10 + digits[r[2]]
	}
	return 0
}
