package oracle

import (
	"strings"
	"testing"
)

func TestRenderPromptRepairCarriesFullLog(t *testing.T) {
	_, user, err := RenderPrompt(Request{
		Task:        TaskRepair,
		Text:        `\begin{document}\itemm\end{document}`,
		Diagnostics: "! Undefined control sequence.\nl.1 \\itemm",
		Summary:     "[undefined-control-sequence] line 1: Undefined control sequence \\itemm",
	})
	if err != nil {
		t.Fatalf("RenderPrompt failed: %v", err)
	}
	for _, want := range []string{"! Undefined control sequence.", `\itemm`, "line 1"} {
		if !strings.Contains(user, want) {
			t.Errorf("repair prompt missing %q", want)
		}
	}
}

func TestRenderPromptReviseHistoryAndFocus(t *testing.T) {
	_, user, err := RenderPrompt(Request{
		Task:     TaskRevise,
		Language: "zh",
		Text:     "doc",
		Feedback: "shorten page 3",
		History:  []string{"use a darker theme", "fix the title"},
		Focus:    `\begin{frame}\frametitle{Method}\end{frame}`,
	})
	if err != nil {
		t.Fatalf("RenderPrompt failed: %v", err)
	}
	for _, want := range []string{"1. use a darker theme", "2. fix the title", "shorten page 3", `\frametitle{Method}`, "Simplified Chinese"} {
		if !strings.Contains(user, want) {
			t.Errorf("revise prompt missing %q:\n%s", want, user)
		}
	}
}

func TestRenderPromptSlideContent(t *testing.T) {
	system, user, err := RenderPrompt(Request{
		Task:      TaskSlideContent,
		Language:  "en",
		DeckTitle: "Sparse Attention",
		Slide:     &SlideContext{Number: 2, Points: []string{"linear cost"}},
	})
	if err != nil {
		t.Fatalf("RenderPrompt failed: %v", err)
	}
	if !strings.Contains(system, `"mode": "patch"`) {
		t.Error("system prompt should describe the answer format")
	}
	if !strings.Contains(user, "linear cost") || !strings.Contains(user, "Choose a short title") {
		t.Errorf("unexpected content prompt:\n%s", user)
	}

	if _, _, err := RenderPrompt(Request{Task: TaskSlideContent}); err == nil {
		t.Error("expected error for slide content request without a slide")
	}
	if _, _, err := RenderPrompt(Request{Task: "poem"}); err == nil {
		t.Error("expected error for unknown task")
	}
}
