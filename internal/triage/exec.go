package triage

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Executor runs a replay script against host:port and returns its combined
// output. Failures to start or finish the script wrap ErrExecution.
type Executor interface {
	Execute(ctx context.Context, script, host string, port int) ([]byte, error)
}

// ScriptExecutor runs scripts with an interpreter as separate processes.
// A script that exits non-zero is not an execution failure: its output is
// still checked for the fault marker.
type ScriptExecutor struct {
	Interpreter string        // e.g. "python3"
	Timeout     time.Duration // per script, 0 for none
}

// Execute implements Executor. When the timeout fires the script's whole
// process group is killed.
func (e *ScriptExecutor) Execute(ctx context.Context, script, host string, port int) ([]byte, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Interpreter, script, host, strconv.Itoa(port))
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd.Process) }
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrExecution, script, ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return out, fmt.Errorf("%w: %s: %w", ErrExecution, script, err)
	}
	return out, nil
}
