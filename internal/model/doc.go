// Package model defines the domain types and value objects for the
// portal-setup CLI.
//
// This package contains pure data structures with no external dependencies.
// A Report describes one initializer run; DatabaseInstance is reconstructed
// from Docker container labels at runtime. There are no state files.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
