// Package cli: doctor.go implements "portal-setup doctor", a read-only
// report on whether the machine and project are ready for development.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portal-setup/internal/config"
	"github.com/shinji-kodama/portal-setup/internal/envfile"
	"github.com/shinji-kodama/portal-setup/internal/gitrepo"
	"github.com/shinji-kodama/portal-setup/internal/model"
	"github.com/shinji-kodama/portal-setup/internal/pkgjson"
	"github.com/shinji-kodama/portal-setup/internal/port"
)

// CheckStatus is the outcome of one doctor check.
type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Check is one line of the doctor report.
type Check struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`
	Detail string      `json:"detail"`
}

// pingDocker is replaced in tests.
var pingDocker = func(ctx context.Context) error {
	c, err := connectDocker(ctx)
	if err != nil {
		return err
	}
	return c.Close()
}

type doctorFlags struct {
	dir        string
	configPath string
}

// NewDoctorCommand creates the "doctor" command.
func NewDoctorCommand() *cobra.Command {
	flags := &doctorFlags{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project and toolchain",
		Long: `Check that the project and local toolchain are ready.

Only a missing package.json fails the command; everything else is reported
as a warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", ".", "Project directory")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to portal-setup.yaml")
	return cmd
}

func runDoctor(cmd *cobra.Command, flags *doctorFlags) error {
	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return err
	}

	checks := RunChecks(cmd.Context(), dir, flags.configPath)

	failed := false
	for _, c := range checks {
		if c.Status == CheckFail {
			failed = true
		}
	}

	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), struct {
			OK     bool    `json:"ok"`
			Checks []Check `json:"checks"`
		}{OK: !failed, Checks: checks}); err != nil {
			return err
		}
	} else {
		out := newPrinter(cmd)
		for _, c := range checks {
			switch c.Status {
			case CheckOK:
				out.Success("%s: %s", c.Name, c.Detail)
			case CheckWarn:
				out.Warning("%s: %s", c.Name, c.Detail)
			default:
				out.Failure("%s: %s", c.Name, c.Detail)
			}
		}
	}

	if failed {
		return model.WrapCLIError(model.ExitMarkerMissing, "doctor found blocking problems",
			fmt.Errorf("%w in %s", pkgjson.ErrMarkerMissing, dir))
	}
	return nil
}

// RunChecks evaluates every check against dir. It never fails; problems
// are reported through the returned statuses.
func RunChecks(ctx context.Context, dir, configPath string) []Check {
	var checks []Check

	if err := pkgjson.CheckMarker(dir); err != nil {
		return append(checks, Check{Name: pkgjson.MarkerFile, Status: CheckFail, Detail: err.Error()})
	}
	checks = append(checks, Check{Name: pkgjson.MarkerFile, Status: CheckOK, Detail: "present"})

	manifest, err := pkgjson.Load(dir)
	if err != nil {
		checks = append(checks, Check{Name: "manifest", Status: CheckWarn, Detail: err.Error()})
	} else if warnings := pkgjson.Validate(manifest); len(warnings) > 0 {
		for _, w := range warnings {
			checks = append(checks, Check{Name: "manifest", Status: CheckWarn, Detail: w.String()})
		}
	} else {
		checks = append(checks, Check{Name: "manifest", Status: CheckOK, Detail: "no findings"})
	}

	cfg, path, err := config.LoadForProject(dir, configPath)
	if err != nil {
		checks = append(checks, Check{Name: "config", Status: CheckWarn, Detail: err.Error()})
		cfg = config.Default()
	} else {
		checks = append(checks, Check{Name: "config", Status: CheckOK, Detail: describeConfig(path)})
	}

	manager := cfg.PackageManager
	if manager == "" {
		manager = pkgjson.DetectPackageManager(dir, manifest)
	}
	checks = append(checks, lookPathCheck("package manager", manager))
	checks = append(checks, lookPathCheck("node", "node"))

	checks = append(checks, appPortCheck(dir, cfg.App.Port))
	checks = append(checks, envFileCheck(dir))

	if err := pingDocker(ctx); err != nil {
		checks = append(checks, Check{Name: "docker", Status: CheckWarn, Detail: "not reachable; `db up` will not work: " + err.Error()})
	} else {
		checks = append(checks, Check{Name: "docker", Status: CheckOK, Detail: "daemon reachable"})
	}

	git := gitrepo.NewManager()
	switch {
	case !git.Available():
		checks = append(checks, Check{Name: "git", Status: CheckWarn, Detail: "git not found on PATH"})
	case git.IsRepo(ctx, dir):
		checks = append(checks, Check{Name: "git", Status: CheckOK, Detail: "inside a git repository"})
	default:
		checks = append(checks, Check{Name: "git", Status: CheckWarn, Detail: "not a git repository; run with --git-init"})
	}

	return checks
}

func describeConfig(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return "defaults (" + config.FileName + " not present)"
}

func lookPathCheck(name, executable string) Check {
	path, err := exec.LookPath(executable)
	if err != nil {
		return Check{Name: name, Status: CheckWarn, Detail: executable + " not found on PATH"}
	}
	return Check{Name: name, Status: CheckOK, Detail: path}
}

// appPortCheck reads PORT from .env when present, falling back to the
// configured app port, and reports whether it is free.
func appPortCheck(dir string, fallback int) Check {
	appPort := fallback
	if data, err := os.ReadFile(filepath.Join(dir, envfile.FileName)); err == nil {
		if v, ok := envfile.Parse(data).Get(envfile.KeyPort); ok {
			if n, err := strconv.Atoi(v); err == nil {
				appPort = n
			}
		}
	}

	name := fmt.Sprintf("port %d", appPort)
	if port.NewScanner().IsPortAvailable(appPort, "tcp") {
		return Check{Name: name, Status: CheckOK, Detail: "free"}
	}
	return Check{Name: name, Status: CheckWarn, Detail: "in use; the dev server will fail to bind"}
}

func envFileCheck(dir string) Check {
	_, err := os.Stat(filepath.Join(dir, envfile.FileName))
	switch {
	case err == nil:
		return Check{Name: envfile.FileName, Status: CheckOK, Detail: "present"}
	case errors.Is(err, os.ErrNotExist):
		return Check{Name: envfile.FileName, Status: CheckWarn, Detail: "missing; run `portal-setup env`"}
	default:
		return Check{Name: envfile.FileName, Status: CheckWarn, Detail: err.Error()}
	}
}
