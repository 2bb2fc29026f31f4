package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// Command is an Oracle backed by a CLI that accepts a prompt with -p and
// prints a JSON result envelope, such as `claude -p --output-format json`.
type Command struct {
	Binary string
	Model  string
	Dir    string
}

// cliOutput is the JSON envelope printed with --output-format json.
type cliOutput struct {
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype"`
	Result     string  `json:"result"`
	CostUSD    float64 `json:"cost_usd"`
	DurationMS int64   `json:"duration_ms"`
	IsError    bool    `json:"is_error"`
}

// Propose runs the CLI once and decodes the model's answer.
func (c *Command) Propose(ctx context.Context, req Request) (Proposal, error) {
	system, user, err := RenderPrompt(req)
	if err != nil {
		return Proposal{}, err
	}

	args := []string{
		"-p", user,
		"--append-system-prompt", system,
		"--output-format", "json",
	}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Proposal{}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Proposal{}, fmt.Errorf("%w: %s exited with error: %v\nstderr: %s", ErrUnavailable, c.Binary, err, stderr.String())
		}
		return Proposal{}, fmt.Errorf("running %s: %w", c.Binary, err)
	}

	result, err := parseCLIOutput(stdout.Bytes())
	if err != nil {
		return Proposal{}, err
	}
	return DecodeProposal(req.Task, result)
}

// parseCLIOutput extracts the model answer from the result envelope.
func parseCLIOutput(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", fmt.Errorf("%w: empty CLI output", ErrMalformed)
	}

	var out cliOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: parsing CLI output: %v", ErrMalformed, err)
	}
	if out.Type != "result" {
		return "", fmt.Errorf("%w: unexpected CLI output type %q (expected \"result\")", ErrMalformed, out.Type)
	}
	if out.IsError {
		return "", fmt.Errorf("%w: CLI reported error: %s", ErrUnavailable, out.Result)
	}
	return out.Result, nil
}
