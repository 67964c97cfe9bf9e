package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shinji-kodama/portal-setup/internal/model"
)

// Label keys used to persist database metadata on the container. Labels
// are the sole persistence mechanism; there is no state file.
//
// All keys share the "labportal." prefix so they never collide with labels
// set by Docker Compose or editors.
const (
	// LabelPrefix is the common prefix for all portal labels.
	LabelPrefix = "labportal."

	// LabelManagedBy identifies containers created by this CLI.
	// Key: "labportal.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject stores the sanitized project name.
	LabelProject = LabelPrefix + "project"

	// LabelProjectDir stores the absolute project directory.
	LabelProjectDir = LabelPrefix + "project-dir"

	// LabelHostPort stores the host port MongoDB is published on.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelDBName stores the database name used in MONGODB_URI.
	LabelDBName = LabelPrefix + "db-name"

	// LabelCreatedAt stores the RFC3339 creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "portal-setup"

// DatabaseSpec describes the database container to create.
type DatabaseSpec struct {
	// Project is the sanitized project name (see model.SanitizeName).
	Project string

	// ProjectDir is the absolute project directory.
	ProjectDir string

	// Image is the MongoDB image reference, e.g. "mongo:7".
	Image string

	// ContainerName overrides the default "<project>-mongo" name.
	ContainerName string

	// HostPort is the preferred host port. The actual port may differ
	// when it is already taken.
	HostPort int

	// DBName is the database name placed in the connection URI.
	DBName string

	// CreatedAt is recorded in LabelCreatedAt.
	CreatedAt time.Time
}

// Name returns the container name for the spec.
func (s DatabaseSpec) Name() string {
	if s.ContainerName != "" {
		return s.ContainerName
	}
	return s.Project + "-mongo"
}

// VolumeName returns the named volume that holds /data/db.
func (s DatabaseSpec) VolumeName() string {
	return s.Name() + "-data"
}

// BuildLabels constructs the Docker label map for a database container.
// hostPort is the port actually allocated, which may differ from
// spec.HostPort.
func BuildLabels(spec DatabaseSpec, hostPort int) map[string]string {
	return map[string]string{
		LabelManagedBy:  ManagedByValue,
		LabelProject:    spec.Project,
		LabelProjectDir: spec.ProjectDir,
		LabelHostPort:   strconv.Itoa(hostPort),
		LabelDBName:     spec.DBName,
		// UTC keeps the value independent of the host timezone.
		LabelCreatedAt: spec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a DatabaseInstance from container labels. It
// is the inverse of BuildLabels. Container ID, name, image and status
// come from the Docker API, not from labels, and are left for the caller.
func ParseLabels(labels map[string]string) (*model.DatabaseInstance, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelProject,
		LabelHostPort,
		LabelDBName,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	hostPort, err := strconv.Atoi(labels[LabelHostPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s=%q: %w", LabelHostPort, labels[LabelHostPort], err)
	}
	if hostPort < 1 || hostPort > 65535 {
		return nil, fmt.Errorf("invalid label %s=%q: port out of range", LabelHostPort, labels[LabelHostPort])
	}

	return &model.DatabaseInstance{
		Project:  labels[LabelProject],
		HostPort: hostPort,
		DBName:   labels[LabelDBName],
		Labels:   labels,
	}, nil
}

// projectFilter returns the "label" filter values selecting managed
// containers, narrowed to one project when project is non-empty.
func projectFilter(project string) []string {
	values := []string{LabelManagedBy + "=" + ManagedByValue}
	if project != "" {
		values = append(values, LabelProject+"="+project)
	}
	return values
}
