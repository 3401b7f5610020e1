package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// Scorer is the contract shared by the periodic anomaly check and the
// per-request injection scanner.
type Scorer interface {
	Score(ctx context.Context, payload any) (Verdict, error)
}

// ExecScorer invokes the scoring model as a subprocess. The payload is
// written to stdin as JSON; the verdict is read from stdout. Spawn errors,
// non-zero exits, timeouts and malformed output all return the negative
// verdict together with the underlying error for logging.
type ExecScorer struct {
	Command string
	Args    []string
	Timeout time.Duration
}

const DefaultTimeout = 5 * time.Second

func NewExecScorer(command string, args []string, timeout time.Duration) *ExecScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecScorer{Command: command, Args: args, Timeout: timeout}
}

func (s *ExecScorer) Score(ctx context.Context, payload any) (Verdict, error) {
	if s.Command == "" {
		return Negative(), fmt.Errorf("no scorer command configured")
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return Negative(), fmt.Errorf("marshal scorer payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Negative(), fmt.Errorf("scorer timed out after %s", s.Timeout)
		}
		return Negative(), fmt.Errorf("scorer process failed: %w (stderr: %s)", err, stderr.String())
	}

	var v Verdict
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &v); err != nil {
		return Negative(), fmt.Errorf("malformed scorer output %q: %w", stdout.String(), err)
	}
	return v, nil
}

// Func adapts a plain function to the Scorer interface, used in tests and
// for wiring stub scorers.
type Func func(ctx context.Context, payload any) (Verdict, error)

func (f Func) Score(ctx context.Context, payload any) (Verdict, error) {
	return f(ctx, payload)
}
