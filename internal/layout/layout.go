// Package layout owns the fixed project skeleton of the Lab Exam Portal:
// the directory list and the two template files stamped into the project
// root. Templates are compiled into the binary via //go:embed and written
// atomically, so an interrupted run never leaves a half-written file.
package layout

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

// File names written into the project root.
const (
	EnvExampleFile = ".env.example"
	GitignoreFile  = ".gitignore"
)

const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

// envExample is written verbatim to .env.example. go:embed skips dotfiles
// inside directories, so the sources live under non-dot names.
//
//go:embed templates/env.example
var envExample string

//go:embed templates/gitignore
var gitignore string

// defaultDirectories is the ordered skeleton of the portal application.
var defaultDirectories = []string{
	"config",
	"models",
	"middleware",
	"routes",
	"controllers",
	"public/css",
	"public/js",
	"public/images",
	"views",
	"student",
	"faculty",
	"admin",
	"utils",
}

// DefaultDirectories returns a copy of the fixed directory list,
// slash-separated and relative to the project root.
func DefaultDirectories() []string {
	dirs := make([]string, len(defaultDirectories))
	copy(dirs, defaultDirectories)
	return dirs
}

// FileTemplate is a single file stamped into the project root.
type FileTemplate struct {
	// Path is relative to the project root.
	Path string

	// Mode is the permission applied to the written file.
	Mode os.FileMode

	// Content is written verbatim; no substitution is performed.
	Content string
}

// EnvExample returns the .env.example template.
func EnvExample() FileTemplate {
	return FileTemplate{Path: EnvExampleFile, Mode: fileMode, Content: envExample}
}

// Gitignore returns the .gitignore template.
func Gitignore() FileTemplate {
	return FileTemplate{Path: GitignoreFile, Mode: fileMode, Content: gitignore}
}

// ValidateRelative rejects directory entries that would escape the
// project root: absolute paths, ".." segments, and empty names.
func ValidateRelative(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("directory entry must not be empty")
	}
	if path.IsAbs(dir) || filepath.IsAbs(dir) {
		return fmt.Errorf("directory %q must be relative to the project root", dir)
	}
	for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
		if seg == ".." {
			return fmt.Errorf("directory %q must not contain '..'", dir)
		}
	}
	return nil
}

// MergeDirectories appends extra entries to base, dropping duplicates
// (after path cleaning) while preserving order.
func MergeDirectories(base, extra []string) ([]string, error) {
	seen := make(map[string]bool, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))

	for _, list := range [][]string{base, extra} {
		for _, dir := range list {
			if err := ValidateRelative(dir); err != nil {
				return nil, err
			}
			clean := path.Clean(filepath.ToSlash(dir))
			if seen[clean] {
				continue
			}
			seen[clean] = true
			merged = append(merged, clean)
		}
	}
	return merged, nil
}

// EnsureDirectories creates every entry of dirs under root, including
// parents. Existing directories are not an error. onEnsured, if non-nil,
// is called after each directory with its slash-separated relative name.
//
// The first failure aborts the loop and is returned wrapped with the
// offending directory.
func EnsureDirectories(root string, dirs []string, onEnsured func(dir string)) error {
	for _, dir := range dirs {
		target := filepath.Join(root, filepath.FromSlash(dir))
		if err := os.MkdirAll(target, dirMode); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
		if onEnsured != nil {
			onEnsured(dir)
		}
	}
	return nil
}

// Write stamps tmpl into root, replacing any existing file. The write goes
// through a temporary file and a rename, so readers see either the old
// content or the complete new content.
func Write(root string, tmpl FileTemplate) error {
	target := filepath.Join(root, filepath.FromSlash(tmpl.Path))
	mode := tmpl.Mode
	if mode == 0 {
		mode = fileMode
	}
	if err := atomicwriter.WriteFile(target, []byte(tmpl.Content), mode); err != nil {
		return fmt.Errorf("write %s: %w", tmpl.Path, err)
	}
	return nil
}
