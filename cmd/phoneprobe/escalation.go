package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/pipeline"
)

// prompter asks the operator what to do after a Blocked page. One prompter
// is shared by all sessions of a run so that questions never interleave.
type prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// newPrompter reads answers from in and writes questions to out.
func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// escalation returns the escalation of one session. A retry cools the
// session limiter down first.
func (p *prompter) escalation(limiter pipeline.Cooler, cooldown time.Duration) pipeline.Escalation {
	return pipeline.EscalationFunc(func(ctx context.Context, outcome model.ProbeOutcome) pipeline.Decision {
		d := p.ask(ctx, outcome)
		if d == pipeline.Retry && limiter != nil && cooldown > 0 {
			limiter.Cooldown(cooldown)
		}
		return d
	})
}

// ask prints the blocked outcome and reads one answer. End of input and
// cancellation mean continue.
func (p *prompter) ask(ctx context.Context, outcome model.ProbeOutcome) pipeline.Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx.Err() != nil {
		return pipeline.Continue
	}

	reason := outcome.Reason
	if reason == "" {
		reason = "blocked"
	}
	fmt.Fprintf(p.out, "\n%s answered %s for %q (attempt %d).\n",
		outcome.URL, reason, outcome.Candidate.Value, outcome.Attempt)
	fmt.Fprint(p.out, "Solve the challenge if needed, then [r]etry, [c]ontinue or [a]bort? ")

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return pipeline.Continue
	}
	return parseDecision(line)
}

// parseDecision maps an answer to a decision. Anything unrecognized
// continues.
func parseDecision(answer string) pipeline.Decision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "r", "retry":
		return pipeline.Retry
	case "a", "abort", "q", "quit":
		return pipeline.Abort
	default:
		return pipeline.Continue
	}
}
