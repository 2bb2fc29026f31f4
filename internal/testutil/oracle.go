package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/slidesmith-dev/slidesmith/internal/oracle"
)

// Reply is one scripted oracle answer.
type Reply struct {
	Proposal oracle.Proposal
	Err      error
}

// Oracle is a scripted oracle.Oracle. Replies are consumed in order; once
// they run out, Fn answers, and without Fn the call fails.
type Oracle struct {
	Replies []Reply
	Fn      func(req oracle.Request) (oracle.Proposal, error)

	mu       sync.Mutex
	requests []oracle.Request
}

// Patch is a patch reply.
func Patch(oldText, newText string) Reply {
	return Reply{Proposal: oracle.Proposal{Mode: oracle.ModePatch, OldText: oldText, NewText: newText}}
}

// Full is a full-replacement reply.
func Full(text string) Reply {
	return Reply{Proposal: oracle.Proposal{Mode: oracle.ModeFull, NewText: text}}
}

// Fail is an error reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Propose records req and returns the next scripted answer.
func (o *Oracle) Propose(ctx context.Context, req oracle.Request) (oracle.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Proposal{}, err
	}
	o.mu.Lock()
	n := len(o.requests)
	o.requests = append(o.requests, req)
	o.mu.Unlock()

	if n < len(o.Replies) {
		r := o.Replies[n]
		return r.Proposal, r.Err
	}
	if o.Fn != nil {
		return o.Fn(req)
	}
	return oracle.Proposal{}, fmt.Errorf("unexpected oracle call %d (%s)", n+1, req.Task)
}

// Calls returns how many requests were made.
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

// Requests returns a copy of the recorded requests.
func (o *Oracle) Requests() []oracle.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]oracle.Request(nil), o.requests...)
}
