// Package model defines the domain types for the portal-setup CLI.
//
// The initializer has no persistent state of its own. Everything here is a
// transient description of what a run did (a Report) or of resources the
// CLI manages on the side, such as the local development database container
// whose state lives entirely in Docker labels.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StepStatus represents the outcome of a single initializer step.
type StepStatus string

const (
	// StepOK indicates the step completed successfully.
	StepOK StepStatus = "ok"

	// StepSkipped indicates the step was not attempted, for example
	// dependency installation with --skip-install.
	StepSkipped StepStatus = "skipped"

	// StepFailed indicates the step ran and failed. Only the install and
	// git-init steps can end in this state without aborting the run.
	StepFailed StepStatus = "failed"
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid checks whether the StepStatus value is one of the
// predefined valid states.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepOK, StepSkipped, StepFailed:
		return true
	default:
		return false
	}
}

// ParseStepStatus converts a string to a StepStatus.
// Returns an error if the string does not match any valid status.
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid step status: %q (valid: ok, skipped, failed)", s)
	}
	return status, nil
}

// InstallResult captures the transient outcome of the package manager
// subprocess. It is used once to build console output and then discarded.
type InstallResult struct {
	// PackageManager is the executable that was invoked (e.g., "npm").
	PackageManager string `json:"packageManager"`

	// Args are the arguments passed to the package manager.
	Args []string `json:"args"`

	// Status is the outcome of the install step.
	Status StepStatus `json:"status"`

	// ExitCode is the child process exit code. -1 when the process never
	// started or was killed.
	ExitCode int `json:"exitCode"`

	// Output is the combined stdout/stderr of the child process.
	Output string `json:"output,omitempty"`

	// Duration is the wall-clock time the child process ran.
	Duration time.Duration `json:"duration"`

	// Reason is a short human-readable explanation for a skipped or
	// failed install.
	Reason string `json:"reason,omitempty"`
}

// Succeeded reports whether the install step completed successfully.
func (r *InstallResult) Succeeded() bool {
	return r != nil && r.Status == StepOK
}

// CommandLine renders the invoked command for display, e.g. "npm install".
func (r *InstallResult) CommandLine() string {
	parts := append([]string{r.PackageManager}, r.Args...)
	return strings.Join(parts, " ")
}

// Report describes everything a single initializer run did.
// It is the payload of the --json output mode.
type Report struct {
	// ProjectDir is the absolute path of the project root the run targeted.
	ProjectDir string `json:"projectDir"`

	// ProjectName is the "name" field of package.json, if it could be read.
	ProjectName string `json:"projectName,omitempty"`

	// Directories lists the directories ensured, relative to ProjectDir,
	// in creation order.
	Directories []string `json:"directories"`

	// Files lists the template files written, relative to ProjectDir.
	Files []string `json:"files"`

	// Install is the dependency installation outcome.
	Install *InstallResult `json:"install,omitempty"`

	// GitInit is the outcome of the optional git repository initialization.
	GitInit StepStatus `json:"gitInit"`

	// NextSteps are the instructions printed in the completion banner.
	NextSteps []string `json:"nextSteps,omitempty"`

	// Warnings are non-fatal findings (package.json validation, git init
	// failures) collected during the run.
	Warnings []string `json:"warnings,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"startedAt"`
}

// AddWarning appends a non-fatal warning to the report.
func (r *Report) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// DatabaseStatus represents the lifecycle state of the local development
// database container.
type DatabaseStatus string

const (
	// DatabaseRunning indicates the container is running.
	DatabaseRunning DatabaseStatus = "running"

	// DatabaseStopped indicates the container exists but is not running.
	DatabaseStopped DatabaseStatus = "stopped"

	// DatabaseAbsent indicates no managed container exists for the project.
	DatabaseAbsent DatabaseStatus = "absent"
)

// String returns the string representation of DatabaseStatus.
func (s DatabaseStatus) String() string {
	return string(s)
}

// DatabaseInstance is the runtime view of a managed MongoDB container,
// reconstructed from Docker labels on every query.
type DatabaseInstance struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the Docker container name without the leading "/".
	ContainerName string `json:"containerName"`

	// Project is the project name the container was created for.
	Project string `json:"project"`

	// Image is the image reference the container runs.
	Image string `json:"image"`

	// HostPort is the host port MongoDB is published on.
	HostPort int `json:"hostPort"`

	// DBName is the database name used in the connection URI.
	DBName string `json:"dbName"`

	// Status is the container lifecycle state.
	Status DatabaseStatus `json:"status"`

	// Labels is the full set of Docker labels on the container.
	Labels map[string]string `json:"labels,omitempty"`
}

// ConnectionURI returns the MONGODB_URI value for this instance.
func (d *DatabaseInstance) ConnectionURI() string {
	return fmt.Sprintf("mongodb://localhost:%d/%s", d.HostPort, d.DBName)
}

// nameRegex validates resource names: alphanumeric plus hyphens,
// starting and ending with an alphanumeric character.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is usable as a container name prefix.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// SanitizeName converts an arbitrary project name (npm names may contain
// scopes, dots and underscores) into a value accepted by ValidateName.
// Falls back to "lab-exam-portal" when nothing usable remains.
func SanitizeName(raw string) string {
	name := strings.TrimPrefix(raw, "@")
	name = strings.NewReplacer("/", "-", "_", "-", ".", "-", " ", "-").Replace(name)

	var result strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}

	name = strings.Trim(result.String(), "-")
	if name == "" {
		name = "lab-exam-portal"
	}
	return name
}

// ExitCode defines the CLI exit codes. Scripts rely on 0 for a completed
// run (including a failed dependency install) and 1 for the two fatal
// conditions of the initializer: a missing package.json and an interrupt.
type ExitCode int

const (
	// ExitSuccess indicates the command completed.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred, including
	// unhandled filesystem failures while scaffolding.
	ExitGeneralError ExitCode = 1

	// ExitMarkerMissing indicates package.json was not found in the
	// project directory. Shares status 1 with ExitGeneralError.
	ExitMarkerMissing ExitCode = 1

	// ExitInterrupted indicates the user interrupted the run (SIGINT/SIGTERM).
	// Shares status 1 with ExitGeneralError.
	ExitInterrupted ExitCode = 1

	// ExitConfigInvalid indicates portal-setup.yaml or a flag value is invalid.
	ExitConfigInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortUnavailable indicates no free host port could be found.
	ExitPortUnavailable ExitCode = 4

	// ExitEnvFileExists indicates .env already exists and --force was not given.
	ExitEnvFileExists ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
