// container.go implements the lifecycle of the local MongoDB container:
// listing, ensuring (pull, create, start), stopping and removing.
//
// All managed containers carry the "labportal.managed-by" label, which
// separates them from unrelated containers on the same host.
package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"

	"github.com/shinji-kodama/portal-setup/internal/model"
)

// mongoPort is the port MongoDB listens on inside the container.
const mongoPort nat.Port = "27017/tcp"

// PortPicker allocates a host port. *port.Allocator satisfies it.
type PortPicker interface {
	Reserve(ports ...int)
	Pick(preferred int) (int, error)
}

// ListDatabases returns the managed database containers, including stopped
// ones, sorted by project name. When project is non-empty only that
// project's containers are returned.
//
// Containers whose labels cannot be parsed are skipped with a debug log;
// they were most likely edited by hand.
func (c *Client) ListDatabases(ctx context.Context, project string) ([]model.DatabaseInstance, error) {
	args := filters.NewArgs()
	for _, v := range projectFilter(project) {
		args.Add("label", v)
	}

	containers, err := c.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.DatabaseInstance, 0, len(containers))
	for _, s := range containers {
		inst, err := summaryToInstance(s)
		if err != nil {
			log.WithField("container", s.ID).WithError(err).Debug("skipping container with malformed labels")
			continue
		}
		result = append(result, *inst)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Project < result[j].Project
	})
	return result, nil
}

// FindDatabase returns the project's database container, or nil when none
// exists.
func (c *Client) FindDatabase(ctx context.Context, project string) (*model.DatabaseInstance, error) {
	instances, err := c.ListDatabases(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	return &instances[0], nil
}

// EnsureDatabase makes sure the project's database container is running.
//
// An existing managed container is started if needed and returned as-is;
// it keeps its original host port. Otherwise the image is pulled when
// missing, a host port is picked (skipping ports held by other managed
// containers, running or not) and a new container is created and started.
//
// The returned bool reports whether a new container was created.
func (c *Client) EnsureDatabase(ctx context.Context, spec DatabaseSpec, ports PortPicker) (*model.DatabaseInstance, bool, error) {
	existing, err := c.FindDatabase(ctx, spec.Project)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Status != model.DatabaseRunning {
			if err := c.StartDatabase(ctx, existing.ContainerID); err != nil {
				return nil, false, err
			}
			existing.Status = model.DatabaseRunning
		}
		return existing, false, nil
	}

	all, err := c.ListDatabases(ctx, "")
	if err != nil {
		return nil, false, err
	}
	for _, inst := range all {
		ports.Reserve(inst.HostPort)
	}

	hostPort, err := ports.Pick(spec.HostPort)
	if err != nil {
		return nil, false, model.WrapCLIError(
			model.ExitPortUnavailable,
			fmt.Sprintf("no free host port for MongoDB near %d", spec.HostPort),
			err,
		)
	}

	if err := c.ensureImage(ctx, spec.Image); err != nil {
		return nil, false, err
	}

	labels := BuildLabels(spec, hostPort)
	config := &container.Config{
		Image:        spec.Image,
		Labels:       labels,
		ExposedPorts: nat.PortSet{mongoPort: struct{}{}},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			mongoPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(hostPort)}},
		},
		Binds:         []string{spec.VolumeName() + ":/data/db"},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	log.WithFields(log.Fields{
		"name":  spec.Name(),
		"image": spec.Image,
		"port":  hostPort,
	}).Debug("creating database container")

	created, err := c.api.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name())
	if err != nil {
		if errdefs.IsConflict(err) {
			return nil, false, model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("container name %q is already used by a container not managed by portal-setup", spec.Name()),
				err,
			)
		}
		return nil, false, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container %q", spec.Name()),
			err,
		)
	}

	if err := c.StartDatabase(ctx, created.ID); err != nil {
		return nil, false, err
	}

	return &model.DatabaseInstance{
		ContainerID:   created.ID,
		ContainerName: spec.Name(),
		Project:       spec.Project,
		Image:         spec.Image,
		HostPort:      hostPort,
		DBName:        spec.DBName,
		Status:        model.DatabaseRunning,
		Labels:        labels,
	}, true, nil
}

// ensureImage pulls ref unless it is already present locally. The pull
// progress stream is drained; the daemon only completes the pull once
// the body has been read.
func (c *Client) ensureImage(ctx context.Context, ref string) error {
	images, err := c.api.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker images", err)
	}
	if len(images) > 0 {
		return nil
	}

	log.WithField("image", ref).Info("pulling image")
	rc, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to pull image %q", ref),
			err,
		)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to read pull progress for %q: %w", ref, err)
	}
	return nil
}

// StartDatabase starts a stopped container by ID.
func (c *Client) StartDatabase(ctx context.Context, containerID string) error {
	if err := c.api.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID),
			err,
		)
	}
	return nil
}

// StopDatabase stops a running container by ID using Docker's default
// grace period (SIGTERM, then SIGKILL after 10 seconds).
func (c *Client) StopDatabase(ctx context.Context, containerID string) error {
	if err := c.api.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveDatabase removes a container by ID. The data volume is kept so a
// later "db up" starts from the same data.
func (c *Client) RemoveDatabase(ctx context.Context, containerID string, force bool) error {
	err := c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil && !errdefs.IsNotFound(err) {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// summaryToInstance maps a Docker API container summary to the domain
// model. Docker reports names with a leading "/", which is stripped.
func summaryToInstance(s container.Summary) (*model.DatabaseInstance, error) {
	inst, err := ParseLabels(s.Labels)
	if err != nil {
		return nil, err
	}

	if len(s.Names) > 0 {
		inst.ContainerName = strings.TrimPrefix(s.Names[0], "/")
	}
	inst.ContainerID = s.ID
	inst.Image = s.Image
	inst.Status = statusFromState(string(s.State))
	return inst, nil
}

// statusFromState collapses Docker's container states into running or
// stopped. "restarting" counts as running because the daemon is actively
// bringing it back.
func statusFromState(state string) model.DatabaseStatus {
	switch state {
	case "running", "restarting":
		return model.DatabaseRunning
	default:
		return model.DatabaseStopped
	}
}
