package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slidesmith-dev/slidesmith/internal/compiler"
	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/workflow"
)

// resolveSession accepts a full session id, a unique prefix of one, or
// "last" for the most recent session.
func resolveSession(ctx context.Context, svc *workflow.Service, arg string) (string, error) {
	sessions, err := svc.Sessions(ctx, -1)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", errors.New("no sessions found; start one with: slidesmith new --plan FILE")
	}
	if arg == "last" {
		return sessions[0].ID, nil
	}

	var matches []string
	for _, s := range sessions {
		if s.ID == arg {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, arg) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("session %q not found", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("session prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func parseRevision(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid revision %q", s)
	}
	return n, nil
}

// printResult reports a finished build.
func printResult(a *store.Artifact) {
	if a == nil {
		return
	}
	fmt.Printf("Revision %d %s after %d attempt(s)\n", a.Revision, a.Status, a.Attempts)
	if a.OutputPath != "" {
		fmt.Printf("  PDF: %s\n", a.OutputPath)
	}
}

// formatError renders err for the terminal, adding a parsed summary of any
// compiler diagnostics it carries.
func formatError(err error) string {
	msg := "Error: " + err.Error()
	diag := deck.Diagnostics(err)
	if diag == "" {
		return msg
	}
	if summary := compiler.ParseDiagnostics(diag); !summary.Empty() {
		return msg + "\n" + indent(summary.String())
	}
	return msg + "\n" + indent(lastLines(diag, 10))
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
