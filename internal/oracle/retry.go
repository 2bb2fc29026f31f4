package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Retrying wraps an Oracle with a per-call timeout and bounded retries on
// transient failures. Malformed answers are returned at once.
type Retrying struct {
	Next       Oracle
	Timeout    time.Duration // per call; zero means no extra deadline
	MaxRetries int
	Backoff    time.Duration // doubled after each retry
	Logger     *slog.Logger
}

// Propose calls Next until it succeeds, fails permanently or runs out of
// retries.
func (r *Retrying) Propose(ctx context.Context, req Request) (Proposal, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	backoff := r.Backoff
	var errs []error
	for attempt := 1; attempt <= r.MaxRetries+1; attempt++ {
		p, err := r.once(ctx, req)
		if err == nil {
			return p, nil
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))

		if ctx.Err() != nil {
			return Proposal{}, fmt.Errorf("oracle call canceled: %w", ctx.Err())
		}
		if !retryable(err) || attempt > r.MaxRetries {
			break
		}

		logger.Warn("oracle call failed, retrying", "task", req.Task, "attempt", attempt, "error", err)
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Proposal{}, fmt.Errorf("oracle call canceled: %w", ctx.Err())
			}
			backoff *= 2
		}
	}
	return Proposal{}, errors.Join(errs...)
}

func (r *Retrying) once(ctx context.Context, req Request) (Proposal, error) {
	if r.Timeout <= 0 {
		return r.Next.Propose(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	p, err := r.Next.Propose(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Proposal{}, fmt.Errorf("%w: call timed out after %s", ErrUnavailable, r.Timeout)
	}
	return p, err
}

func retryable(err error) bool {
	return IsTransient(err)
}
