// Package docker provides Docker Engine API wrappers for the local
// development database used by the portal.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container labels that persist database metadata (Docker labels are
//     the only state; nothing is written to the project directory)
//   - Database lifecycle operations: ensure (pull, create, start), stop,
//     remove and list
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
