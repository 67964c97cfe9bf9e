package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/portal-setup/internal/model"
)

// fakeManager writes an executable shell script named name into a fresh
// directory and puts that directory first on PATH, shadowing any real
// installation. The script body runs under /bin/sh.
func fakeManager(t *testing.T, name, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fakes require a POSIX shell")
	}

	binDir := t.TempDir()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestInstall_Success(t *testing.T) {
	fakeManager(t, "npm", `echo "added 42 packages"; echo "$@" > invoked.txt`)
	dir := t.TempDir()

	result, err := New("npm", dir, 10*time.Second).Install(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StepOK, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "added 42 packages")
	assert.Equal(t, "npm install", result.CommandLine())
	assert.Empty(t, result.Reason)

	// The command runs inside the project directory with "install" as its only argument.
	invoked, err := os.ReadFile(filepath.Join(dir, "invoked.txt"))
	require.NoError(t, err)
	assert.Equal(t, "install\n", string(invoked))
}

// TestInstall_NonZeroExit verifies that stderr is captured along with
// stdout and the exit code is reported.
func TestInstall_NonZeroExit(t *testing.T) {
	fakeManager(t, "npm", `echo "npm ERR! code ERESOLVE" >&2; exit 3`)

	result, err := New("npm", t.TempDir(), 10*time.Second).Install(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailed))

	assert.Equal(t, model.StepFailed, result.Status)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Output, "npm ERR! code ERESOLVE")
	assert.Equal(t, "exit status 3", result.Reason)
}

func TestInstall_NotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	result, err := New("npm", t.TempDir(), time.Second).Install(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, model.StepFailed, result.Status)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Reason, "not found")
}

func TestInstall_Timeout(t *testing.T) {
	fakeManager(t, "npm", `exec sleep 5`)

	start := time.Now()
	result, err := New("npm", t.TempDir(), 200*time.Millisecond).Install(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, model.StepFailed, result.Status)
	assert.Contains(t, result.Reason, "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

// TestInstall_Cancelled verifies that caller cancellation (an interrupt)
// is reported as the context error, not as a timeout.
func TestInstall_Cancelled(t *testing.T) {
	fakeManager(t, "npm", `exec sleep 5`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	result, err := New("npm", t.TempDir(), time.Minute).Install(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, "interrupted", result.Reason)
}

func TestInstall_CustomManager(t *testing.T) {
	fakeManager(t, "pnpm", `echo "pnpm $@"`)

	result, err := New("pnpm", t.TempDir(), 10*time.Second).Install(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pnpm install", result.CommandLine())
	assert.Contains(t, result.Output, "pnpm install")
}

func TestGuidance(t *testing.T) {
	npm := Guidance("npm")
	require.Len(t, npm, 2)
	assert.Equal(t, "Node.js/npm not found. Please install Node.js first.", npm[0])
	assert.Contains(t, npm[1], "https://nodejs.org/")

	assert.Contains(t, Guidance("pnpm")[0], "corepack enable")
	assert.Contains(t, Guidance("bun")[1], "https://bun.sh/")
	assert.Equal(t, []string{"mystery not found on PATH."}, Guidance("mystery"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "a\nb", Tail("a\nb\n"))

	var lines []string
	for i := 0; i < 80; i++ {
		lines = append(lines, strings.Repeat("x", i%5+1))
	}
	got := Tail(strings.Join(lines, "\n"))
	assert.Len(t, strings.Split(got, "\n"), outputTailLines)
	assert.True(t, strings.HasSuffix(got, lines[79]))
}
