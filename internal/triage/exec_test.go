//go:build unix

package triage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestScriptExecutor_PassesTarget(t *testing.T) {
	script := writeScript(t, "echo \"$1:$2\"\necho oops >&2\n")

	ex := &ScriptExecutor{Interpreter: "sh"}
	out, err := ex.Execute(context.Background(), script, "127.0.0.1", 4000)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4000\noops\n", string(out))
}

func TestScriptExecutor_NonZeroExitKeepsOutput(t *testing.T) {
	script := writeScript(t, "echo FARKFARKFARK\nexit 3\n")

	ex := &ScriptExecutor{Interpreter: "sh"}
	out, err := ex.Execute(context.Background(), script, "127.0.0.1", 1)
	require.NoError(t, err)
	assert.Contains(t, string(out), "FARKFARKFARK")
}

func TestScriptExecutor_TimeoutKillsGroup(t *testing.T) {
	// The background sleep keeps the output pipe open unless the whole
	// group dies.
	script := writeScript(t, "sleep 30 &\nsleep 30\n")

	ex := &ScriptExecutor{Interpreter: "sh", Timeout: 200 * time.Millisecond}
	start := time.Now()
	_, err := ex.Execute(context.Background(), script, "127.0.0.1", 1)
	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestScriptExecutor_MissingInterpreter(t *testing.T) {
	script := writeScript(t, "true\n")

	ex := &ScriptExecutor{Interpreter: "aptrace-no-such-interpreter"}
	_, err := ex.Execute(context.Background(), script, "127.0.0.1", 1)
	assert.ErrorIs(t, err, ErrExecution)
}
