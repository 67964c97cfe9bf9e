// Package pkgjson handles the package.json marker file of the portal project.
//
// The presence of package.json is the initializer's only precondition. Its
// contents are optional input: when readable, they select the package
// manager and feed the non-fatal validation warnings. package.json is
// parsed through github.com/tidwall/jsonc so hand-edited files with
// comments or trailing commas still load.
package pkgjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// MarkerFile is the file whose presence marks a project root.
const MarkerFile = "package.json"

// DefaultPackageManager is used when nothing in the project selects one.
const DefaultPackageManager = "npm"

// ErrMarkerMissing is returned by CheckMarker when package.json is absent.
var ErrMarkerMissing = errors.New("package.json not found")

// supportedManagers lists the package managers the initializer knows how
// to invoke. All of them accept a bare "install" subcommand.
var supportedManagers = map[string]bool{
	"npm":  true,
	"pnpm": true,
	"yarn": true,
	"bun":  true,
}

// lockFiles maps lock file names to the package manager that writes them,
// in detection priority order.
var lockFiles = []struct {
	name    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"bun.lock", "bun"},
	{"package-lock.json", "npm"},
}

// Manifest is the subset of package.json the initializer reads. Unknown
// fields are ignored.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version,omitempty"`
	Main            string            `json:"main,omitempty"`
	Scripts         map[string]string `json:"scripts,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Engines         map[string]string `json:"engines,omitempty"`

	// PackageManager is the corepack field, e.g. "pnpm@8.6.0".
	PackageManager string `json:"packageManager,omitempty"`
}

// MarkerPath returns the path of package.json inside dir.
func MarkerPath(dir string) string {
	return filepath.Join(dir, MarkerFile)
}

// CheckMarker verifies that package.json exists in dir. Any existing
// entry satisfies the check; the contents are not inspected.
func CheckMarker(dir string) error {
	_, err := os.Stat(MarkerPath(dir))
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return fmt.Errorf("%w in %s", ErrMarkerMissing, dir)
	}
	return fmt.Errorf("check %s: %w", MarkerFile, err)
}

// Load reads and parses package.json from dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(MarkerPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrMarkerMissing, dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", MarkerFile, err)
	}
	return Parse(data)
}

// Parse decodes package.json content. Comments and trailing commas are
// stripped before decoding.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", MarkerFile, err)
	}
	return &m, nil
}

// HasScript reports whether scripts contains name.
func (m *Manifest) HasScript(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Scripts[name]
	return ok
}

// HasDependency reports whether name is listed in dependencies or
// devDependencies.
func (m *Manifest) HasDependency(name string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.Dependencies[name]; ok {
		return true
	}
	_, ok := m.DevDependencies[name]
	return ok
}

// ScriptNames returns the script names in sorted order.
func (m *Manifest) ScriptNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Scripts))
	for name := range m.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupportedManager reports whether name is a package manager the
// initializer can invoke.
func IsSupportedManager(name string) bool {
	return supportedManagers[name]
}

// ManagerFromField extracts the manager name from a corepack
// "packageManager" value such as "pnpm@8.6.0+sha256.abc".
func ManagerFromField(field string) (string, bool) {
	name, _, _ := strings.Cut(strings.TrimSpace(field), "@")
	name = strings.ToLower(name)
	if !IsSupportedManager(name) {
		return "", false
	}
	return name, true
}

// DetectPackageManager picks the package manager for dir. The corepack
// field in m wins, then lock files, then DefaultPackageManager. m may be nil.
func DetectPackageManager(dir string, m *Manifest) string {
	if m != nil && m.PackageManager != "" {
		if name, ok := ManagerFromField(m.PackageManager); ok {
			return name
		}
	}
	for _, lf := range lockFiles {
		if _, err := os.Stat(filepath.Join(dir, lf.name)); err == nil {
			return lf.manager
		}
	}
	return DefaultPackageManager
}
