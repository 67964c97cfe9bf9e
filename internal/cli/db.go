// Package cli: db.go implements "portal-setup db up|down|status", which
// manages a local MongoDB container for development.
//
// State lives only in Docker labels on the container (see
// internal/docker/label.go); nothing is written to the project directory.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portal-setup/internal/docker"
	"github.com/shinji-kodama/portal-setup/internal/model"
	"github.com/shinji-kodama/portal-setup/internal/pkgjson"
	"github.com/shinji-kodama/portal-setup/internal/port"
)

type dbFlags struct {
	dir        string
	configPath string
	remove     bool
	all        bool
}

// NewDBCommand creates the "db" command group.
func NewDBCommand() *cobra.Command {
	flags := &dbFlags{}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the local MongoDB development container",
		Long: `Manage a local MongoDB container for the project.

"db up" pulls the image if needed and starts a container named
<project>-mongo, publishing MongoDB on 127.0.0.1:27017 or the next free
port. The MONGODB_URI to put into .env is printed.

Examples:
  portal-setup db up
  portal-setup db status --all
  portal-setup db down --remove`,
		Args: cobra.NoArgs,
	}

	cmd.PersistentFlags().StringVar(&flags.dir, "dir", ".", "Project directory")
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to portal-setup.yaml")

	up := &cobra.Command{
		Use:   "up",
		Short: "Create or start the project's MongoDB container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBUp(cmd, flags)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Stop the project's MongoDB container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBDown(cmd, flags)
		},
	}
	down.Flags().BoolVar(&flags.remove, "remove", false, "Also remove the container (the data volume is kept)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show managed MongoDB containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBStatus(cmd, flags)
		},
	}
	status.Flags().BoolVar(&flags.all, "all", false, "Show containers of every project")

	cmd.AddCommand(up, down, status)
	return cmd
}

// projectName derives the container name prefix from package.json, or
// from the directory name when package.json has no usable name.
func projectName(dir string) string {
	if m, err := pkgjson.Load(dir); err == nil && m.Name != "" {
		return model.SanitizeName(m.Name)
	}
	return model.SanitizeName(filepath.Base(dir))
}

// connectDocker creates a client and verifies the daemon answers.
func connectDocker(ctx context.Context) (*docker.Client, error) {
	c, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	log.Debug("connected to Docker daemon")
	return c, nil
}

func runDBUp(cmd *cobra.Command, flags *dbFlags) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig(flags.dir, flags.configPath)
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return err
	}

	spec := docker.DatabaseSpec{
		Project:       projectName(dir),
		ProjectDir:    dir,
		Image:         cfg.Database.Image,
		ContainerName: cfg.Database.ContainerName,
		HostPort:      cfg.Database.Port,
		DBName:        cfg.Database.DBName,
		CreatedAt:     time.Now(),
	}

	c, err := connectDocker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	out := newPrinter(cmd)
	out.Heading("🍃", "Starting MongoDB (%s)...", spec.Image)

	var (
		inst    *model.DatabaseInstance
		created bool
	)
	err = out.RunWithSpinner("Waiting for Docker", func() error {
		var ensureErr error
		inst, created, ensureErr = c.EnsureDatabase(ctx, spec, port.NewAllocator(port.NewScanner()))
		return ensureErr
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), dbInstanceJSON(*inst))
	}

	if created {
		out.Success("Created container %s on port %d", inst.ContainerName, inst.HostPort)
	} else {
		out.Success("Container %s is running on port %d", inst.ContainerName, inst.HostPort)
	}
	if inst.HostPort != spec.HostPort {
		out.Warning("Port %d was taken; MongoDB is published on %d", spec.HostPort, inst.HostPort)
	}
	out.Blank()
	out.Println("Put this into .env:")
	out.Indented("MONGODB_URI=" + inst.ConnectionURI())
	return nil
}

func runDBDown(cmd *cobra.Command, flags *dbFlags) error {
	ctx := cmd.Context()

	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return err
	}
	project := projectName(dir)

	c, err := connectDocker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	inst, err := c.FindDatabase(ctx, project)
	if err != nil {
		return err
	}

	out := newPrinter(cmd)
	if inst == nil {
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"project": project,
				"status":  model.DatabaseAbsent,
			})
		}
		out.Println("No MongoDB container for project %q.", project)
		return nil
	}

	if inst.Status == model.DatabaseRunning {
		if err := c.StopDatabase(ctx, inst.ContainerID); err != nil {
			return err
		}
		inst.Status = model.DatabaseStopped
		out.Success("Stopped %s", inst.ContainerName)
	}

	if flags.remove {
		if err := c.RemoveDatabase(ctx, inst.ContainerID, false); err != nil {
			return err
		}
		inst.Status = model.DatabaseAbsent
		out.Success("Removed %s (volume %s-data kept)", inst.ContainerName, inst.ContainerName)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), dbInstanceJSON(*inst))
	}
	return nil
}

func runDBStatus(cmd *cobra.Command, flags *dbFlags) error {
	ctx := cmd.Context()

	project := ""
	if !flags.all {
		dir, err := filepath.Abs(flags.dir)
		if err != nil {
			return err
		}
		project = projectName(dir)
	}

	c, err := connectDocker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	instances, err := c.ListDatabases(ctx, project)
	if err != nil {
		return err
	}

	if jsonOutput {
		result := struct {
			Databases []dbJSON `json:"databases"`
		}{Databases: make([]dbJSON, 0, len(instances))}
		for _, inst := range instances {
			result.Databases = append(result.Databases, dbInstanceJSON(inst))
		}
		return writeJSON(cmd.OutOrStdout(), result)
	}

	out := newPrinter(cmd)
	for _, line := range FormatDatabaseTable(instances) {
		out.Println("%s", line)
	}
	return nil
}

// dbJSON is the JSON shape of a database container.
type dbJSON struct {
	Project       string `json:"project"`
	ContainerName string `json:"containerName"`
	Status        string `json:"status"`
	Image         string `json:"image"`
	HostPort      int    `json:"hostPort"`
	URI           string `json:"uri"`
}

func dbInstanceJSON(inst model.DatabaseInstance) dbJSON {
	return dbJSON{
		Project:       inst.Project,
		ContainerName: inst.ContainerName,
		Status:        inst.Status.String(),
		Image:         inst.Image,
		HostPort:      inst.HostPort,
		URI:           inst.ConnectionURI(),
	}
}

// FormatDatabaseTable renders instances as fixed-width rows:
//
//	PROJECT              CONTAINER                 STATUS    PORT   URI
//	lab-exam-portal      lab-exam-portal-mongo     running   27017  mongodb://localhost:27017/lab_exam_portal
func FormatDatabaseTable(instances []model.DatabaseInstance) []string {
	if len(instances) == 0 {
		return []string{"No MongoDB containers found."}
	}

	lines := []string{fmt.Sprintf("%-20s %-25s %-9s %-6s %s", "PROJECT", "CONTAINER", "STATUS", "PORT", "URI")}
	for _, inst := range instances {
		lines = append(lines, fmt.Sprintf("%-20s %-25s %-9s %-6d %s",
			inst.Project,
			inst.ContainerName,
			inst.Status.String(),
			inst.HostPort,
			inst.ConnectionURI(),
		))
	}
	return lines
}
