package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Backend invokes the external fine-tuning framework. The driver owns
// argument marshaling and log capture; the backend owns everything the
// framework does (tokenization, optimization, device placement).
type Backend interface {
	Train(ctx context.Context, args []string, out io.Writer) error
	Predict(ctx context.Context, args []string, out io.Writer) error
}

// ExecBackend runs the framework trainer as a subprocess, streaming its
// combined output to the given writer. The subprocess exit status
// propagates as the returned error.
type ExecBackend struct {
	Command  string
	BaseArgs []string
}

var execCommandContext = exec.CommandContext

func (b *ExecBackend) Train(ctx context.Context, args []string, out io.Writer) error {
	return b.run(ctx, "train", args, out)
}

func (b *ExecBackend) Predict(ctx context.Context, args []string, out io.Writer) error {
	return b.run(ctx, "predict", args, out)
}

func (b *ExecBackend) run(ctx context.Context, mode string, args []string, out io.Writer) error {
	if b == nil {
		return errors.New("trainer: nil backend")
	}
	cmd := strings.TrimSpace(b.Command)
	if cmd == "" {
		return errors.New("trainer: empty backend command")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	argv := make([]string, 0, len(b.BaseArgs)+1+len(args))
	argv = append(argv, b.BaseArgs...)
	argv = append(argv, mode)
	argv = append(argv, args...)

	c := execCommandContext(ctx, cmd, argv...)
	c.Stdout = out
	c.Stderr = out
	if err := c.Run(); err != nil {
		return fmt.Errorf("trainer: backend %s %s: %w", cmd, mode, err)
	}
	return nil
}
