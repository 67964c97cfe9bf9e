// Package installer runs the project's package manager ("npm install" by
// default) as a child process with a deadline and reports what happened.
//
// The package never prints. It returns a model.InstallResult describing the
// run plus an error classified by one of the sentinels below, and leaves
// console rendering to the caller. All commands use exec.CommandContext with
// an explicit argument slice; nothing goes through a shell.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/shinji-kodama/portal-setup/internal/model"
)

// waitDelay bounds how long Wait blocks on output pipes after the child is
// killed. npm spawns helpers that can inherit the pipes and keep them open.
const waitDelay = 5 * time.Second

// outputTailLines is how many trailing lines of output Tail keeps.
const outputTailLines = 50

var (
	// ErrNotFound means the package manager executable is not on PATH.
	ErrNotFound = errors.New("package manager not found")

	// ErrFailed means the package manager ran and exited non-zero.
	ErrFailed = errors.New("package manager install failed")

	// ErrTimeout means the package manager did not finish before the deadline.
	ErrTimeout = errors.New("package manager install timed out")
)

// Installer runs "<Manager> install" inside Dir.
type Installer struct {
	// Manager is the package manager executable name (e.g., "npm").
	Manager string

	// Dir is the project directory the command runs in.
	Dir string

	// Timeout bounds the child process. Zero means no deadline beyond ctx.
	Timeout time.Duration

	// Args are the arguments passed to Manager. Defaults to ["install"].
	Args []string
}

// New creates an Installer for manager in dir with the given timeout.
func New(manager, dir string, timeout time.Duration) *Installer {
	return &Installer{
		Manager: manager,
		Dir:     dir,
		Timeout: timeout,
		Args:    []string{"install"},
	}
}

// Install runs the package manager and blocks until it exits, the timeout
// elapses, or ctx is cancelled.
//
// The returned result is never nil. The error is nil on success and
// otherwise matches ErrNotFound, ErrFailed, ErrTimeout, or (when ctx was
// cancelled by the caller) ctx.Err().
func (i *Installer) Install(ctx context.Context) (*model.InstallResult, error) {
	args := i.Args
	if len(args) == 0 {
		args = []string{"install"}
	}

	result := &model.InstallResult{
		PackageManager: i.Manager,
		Args:           args,
		Status:         model.StepFailed,
		ExitCode:       -1,
	}

	path, err := exec.LookPath(i.Manager)
	if err != nil {
		result.Reason = fmt.Sprintf("%s not found on PATH", i.Manager)
		return result, fmt.Errorf("%w: %s: %v", ErrNotFound, i.Manager, err)
	}

	runCtx := ctx
	if i.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	// #nosec G204 -- the executable comes from config/detection, args are fixed
	cmd := exec.CommandContext(runCtx, path, args...)
	cmd.Dir = i.Dir
	cmd.WaitDelay = waitDelay

	log.WithFields(log.Fields{
		"cmd":     result.CommandLine(),
		"dir":     i.Dir,
		"timeout": i.Timeout,
	}).Debug("running package manager")

	start := time.Now()
	output, runErr := cmd.CombinedOutput()
	result.Duration = time.Since(start)
	result.Output = string(output)

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case runErr == nil:
		result.Status = model.StepOK
		result.Reason = ""
		return result, nil

	case ctx.Err() != nil:
		// The caller cancelled (interrupt); report that rather than a timeout.
		result.Reason = "interrupted"
		return result, ctx.Err()

	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Reason = fmt.Sprintf("timed out after %s", i.Timeout)
		return result, fmt.Errorf("%w after %s", ErrTimeout, i.Timeout)

	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.Reason = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		} else {
			result.Reason = runErr.Error()
		}
		return result, fmt.Errorf("%w: %s: %v", ErrFailed, result.CommandLine(), runErr)
	}
}

// Guidance returns the advice printed when manager is not installed.
func Guidance(manager string) []string {
	switch manager {
	case "npm", "":
		return []string{
			"Node.js/npm not found. Please install Node.js first.",
			"📥 Download from: https://nodejs.org/",
		}
	case "pnpm", "yarn":
		return []string{
			fmt.Sprintf("%s not found. Enable it with `corepack enable` or install it with `npm install -g %s`.", manager, manager),
			"📥 Node.js (with corepack): https://nodejs.org/",
		}
	case "bun":
		return []string{
			"bun not found. Please install Bun first.",
			"📥 Download from: https://bun.sh/",
		}
	default:
		return []string{fmt.Sprintf("%s not found on PATH.", manager)}
	}
}

// Tail returns the last outputTailLines lines of output, trimmed.
func Tail(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\r\n"), "\n")
	if len(lines) > outputTailLines {
		lines = lines[len(lines)-outputTailLines:]
	}
	return strings.Join(lines, "\n")
}
