// Package gitrepo provides the small set of Git operations the initializer
// needs: detecting whether the project is already under version control
// and initializing a repository when --git-init is requested.
//
// We shell out to `git` rather than using a Go Git library because the
// initializer only needs two plumbing commands and must honour the user's
// own git configuration (init.defaultBranch, templates, hooks).
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrGitNotFound is returned when the git executable is not on PATH.
var ErrGitNotFound = errors.New("git not found")

// Manager runs git commands. It is stateless; the struct exists so the
// binary name can be swapped in tests.
type Manager struct {
	// binary is the git executable name or path.
	binary string
}

// NewManager creates a Manager that invokes "git" from PATH.
func NewManager() *Manager {
	return &Manager{binary: "git"}
}

// Available reports whether the git executable can be found.
func (m *Manager) Available() bool {
	_, err := exec.LookPath(m.binary)
	return err == nil
}

// IsRepo reports whether dir is inside a Git work tree. Any failure,
// including git being absent, counts as "not a repository".
func (m *Manager) IsRepo(ctx context.Context, dir string) bool {
	out, err := m.run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// TopLevel returns the root of the work tree containing dir.
func (m *Manager) TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := m.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Init runs `git init` in dir.
func (m *Manager) Init(ctx context.Context, dir string) error {
	_, err := m.run(ctx, dir, "init")
	return err
}

// EnsureRepo initializes dir unless it already sits inside a work tree.
// It returns true when a new repository was created.
func (m *Manager) EnsureRepo(ctx context.Context, dir string) (bool, error) {
	if !m.Available() {
		return false, ErrGitNotFound
	}
	if m.IsRepo(ctx, dir) {
		return false, nil
	}
	if err := m.Init(ctx, dir); err != nil {
		return false, err
	}
	return true, nil
}

// run executes git with args in dir, using -C so the process working
// directory is never changed. stderr is folded into the error on failure.
func (m *Manager) run(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, m.binary, fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrGitNotFound
		}
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}

	return stdout.String(), nil
}
