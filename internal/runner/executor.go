package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Executor runs one scanner invocation to completion.
type Executor interface {
	Execute(ctx context.Context, dir, name string, args []string) error
}

// Compile-time interface guard.
var _ Executor = (*ExecExecutor)(nil)

// ExecExecutor runs the scanner as a child process in the engagement
// directory. The process is killed when ctx is done.
type ExecExecutor struct {
	logger *zap.Logger
}

// NewExecExecutor creates an ExecExecutor.
func NewExecExecutor(logger *zap.Logger) *ExecExecutor {
	return &ExecExecutor{logger: logger}
}

// outputTail bounds how much scanner output is kept in an error.
const outputTail = 512

func (e *ExecExecutor) Execute(ctx context.Context, dir, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // scanner path and args come from the operator's plan
	cmd.Dir = dir

	e.logger.Debug("executing scanner",
		zap.String("cmd", name+" "+strings.Join(args, " ")),
		zap.String("dir", dir),
	)

	out, err := cmd.CombinedOutput()
	e.logger.Debug("scanner finished", zap.Int("output_bytes", len(out)), zap.Error(err))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		tail := bytes.TrimSpace(out)
		if len(tail) > outputTail {
			tail = tail[len(tail)-outputTail:]
		}
		return fmt.Errorf("%s failed: %w (output: %s)", name, err, tail)
	}
	return nil
}
