package oracle

import (
	"errors"
	"testing"
)

func TestDecodeProposal(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		raw     string
		want    Proposal
		wantErr bool
	}{
		{
			name: "patch",
			raw:  `{"mode": "patch", "old_text": "\\itemm", "new_text": "\\item", "message": "typo"}`,
			want: Proposal{Mode: ModePatch, OldText: `\itemm`, NewText: `\item`, Message: "typo"},
		},
		{
			name: "patch may delete",
			raw:  `{"mode": "patch", "old_text": "x", "new_text": ""}`,
			want: Proposal{Mode: ModePatch, OldText: "x", NewText: ""},
		},
		{
			name: "fenced full with chatter",
			raw:  "Sure, here it is:\n```json\n{\"mode\": \"FULL\", \"new_text\": \"doc\"}\n```\nEnjoy!",
			want: Proposal{Mode: ModeFull, NewText: "doc"},
		},
		{
			name: "slide content title",
			task: TaskSlideContent,
			raw:  `{"mode": "full", "title": " Results ", "new_text": "- a\n- b"}`,
			want: Proposal{Mode: ModeFull, NewText: "- a\n- b", Title: "Results"},
		},
		{name: "no json", raw: "I cannot help with that", wantErr: true},
		{name: "missing mode", raw: `{"new_text": "x"}`, wantErr: true},
		{name: "unknown mode", raw: `{"mode": "diff", "new_text": "x"}`, wantErr: true},
		{name: "patch without old_text", raw: `{"mode": "patch", "new_text": "x"}`, wantErr: true},
		{name: "patch with empty old_text", raw: `{"mode": "patch", "old_text": "", "new_text": "x"}`, wantErr: true},
		{name: "patch without new_text", raw: `{"mode": "patch", "old_text": "x"}`, wantErr: true},
		{name: "full without new_text", raw: `{"mode": "full"}`, wantErr: true},
		{name: "full with blank new_text", raw: `{"mode": "full", "new_text": "  "}`, wantErr: true},
		{
			name: "slide content with title only",
			task: TaskSlideContent,
			raw:  `{"mode": "full", "title": "Results"}`,
			want: Proposal{Mode: ModeFull, Title: "Results"},
		},
		{
			name: "slide content with blank bullets",
			task: TaskSlideContent,
			raw:  `{"mode": "full", "title": "Results", "new_text": " "}`,
			want: Proposal{Mode: ModeFull, NewText: " ", Title: "Results"},
		},
		{name: "slide content without mode", task: TaskSlideContent, raw: `{"title": "Results"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := tt.task
			if task == "" {
				task = TaskRepair
			}
			got, err := DecodeProposal(task, tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```latex\n\\documentclass{beamer}\n```", `\documentclass{beamer}`},
		{"```\nplain\n```", "plain"},
		{"  no fences  ", "no fences"},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLines(t *testing.T) {
	got := Lines("- first\n\n* second\n  • third  \n")
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Lines[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
