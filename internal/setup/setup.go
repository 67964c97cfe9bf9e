// Package setup runs the Lab Exam Portal project initializer: the marker
// check followed by the fixed sequence of scaffolding steps.
//
// The Initializer writes decorated progress to a console.Printer and
// returns a model.Report describing what it did. Only two conditions end a
// run early: a missing package.json and cancellation of the context (an
// interrupt). A failed dependency install is reported but the run carries
// on to the next-steps banner. Filesystem errors while scaffolding are
// returned as-is.
package setup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/shinji-kodama/portal-setup/internal/config"
	"github.com/shinji-kodama/portal-setup/internal/console"
	"github.com/shinji-kodama/portal-setup/internal/gitrepo"
	"github.com/shinji-kodama/portal-setup/internal/installer"
	"github.com/shinji-kodama/portal-setup/internal/layout"
	"github.com/shinji-kodama/portal-setup/internal/model"
	"github.com/shinji-kodama/portal-setup/internal/pkgjson"
)

// ErrInterrupted is returned (wrapped in a CLIError) when the context is
// cancelled mid-run. The interrupt message has already been printed.
var ErrInterrupted = errors.New("setup interrupted by user")

// Options configure an Initializer.
type Options struct {
	// Dir is the project directory. Relative paths are resolved against
	// the working directory.
	Dir string

	// LoadConfig is called after the marker check succeeds. Nil means
	// config.Default().
	LoadConfig func() (*config.Config, error)

	// Printer receives the decorated output. Nil means console.Discard().
	Printer *console.Printer

	// PackageManager overrides both the config file and detection.
	PackageManager string

	// SkipInstall and GitInit are OR-ed with the config file values.
	SkipInstall bool
	GitInit     bool

	// Timeout overrides the configured install timeout when non-zero.
	Timeout time.Duration
}

// Initializer scaffolds one project directory.
type Initializer struct {
	dir     string
	opts    Options
	out     *console.Printer
	cfg     *config.Config
	git     *gitrepo.Manager
	report  *model.Report
	manager string
}

// New creates an Initializer for opts.
func New(opts Options) (*Initializer, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory %q: %w", dir, err)
	}

	out := opts.Printer
	if out == nil {
		out = console.Discard()
	}

	return &Initializer{
		dir:  abs,
		opts: opts,
		out:  out,
		git:  gitrepo.NewManager(),
		report: &model.Report{
			ProjectDir: abs,
			GitInit:    model.StepSkipped,
		},
	}, nil
}

// Report returns the report of the current or last run.
func (i *Initializer) Report() *model.Report {
	return i.report
}

// Run executes the initializer. The returned report is never nil, even
// when an error is returned.
func (i *Initializer) Run(ctx context.Context) (*model.Report, error) {
	i.report.StartedAt = time.Now()

	i.out.Println("🚀 Starting Lab Exam Portal Setup...")
	i.out.Blank()

	if err := i.CheckMarker(); err != nil {
		return i.report, err
	}

	if err := i.prepare(); err != nil {
		return i.report, err
	}

	steps := []func(context.Context) error{
		i.CreateDirectoryStructure,
		i.CreateEnvFile,
		i.CreateGitignore,
		i.InitGit,
		i.InstallDependencies,
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			return i.report, i.interrupted(ctx.Err())
		}
		if err := step(ctx); err != nil {
			if ctx.Err() != nil {
				return i.report, i.interrupted(ctx.Err())
			}
			return i.report, err
		}
	}

	i.PrintNextSteps()
	return i.report, nil
}

// CheckMarker verifies package.json exists. On failure nothing has been
// written to the project directory.
func (i *Initializer) CheckMarker() error {
	if err := pkgjson.CheckMarker(i.dir); err != nil {
		if errors.Is(err, pkgjson.ErrMarkerMissing) {
			i.out.Fatal("%s not found!", pkgjson.MarkerFile)
			return model.WrapCLIError(model.ExitMarkerMissing, "package.json not found", err)
		}
		return err
	}
	return nil
}

// prepare loads configuration and package.json and settles the package
// manager. A package.json that does not parse still counts as present.
func (i *Initializer) prepare() error {
	cfg := config.Default()
	if i.opts.LoadConfig != nil {
		loaded, err := i.opts.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if i.opts.Timeout > 0 {
		cfg.InstallTimeout = config.Duration(i.opts.Timeout)
	}
	i.cfg = cfg

	manifest, err := pkgjson.Load(i.dir)
	if err != nil {
		log.WithError(err).Warn("package.json could not be parsed")
		i.report.AddWarning("%v", err)
	} else {
		i.report.ProjectName = manifest.Name
		for _, w := range pkgjson.Validate(manifest) {
			log.WithField("field", w.Field).Warn(w.Message)
			i.report.AddWarning("%s", w.String())
		}
	}

	switch {
	case i.opts.PackageManager != "":
		i.manager = i.opts.PackageManager
	case cfg.PackageManager != "":
		i.manager = cfg.PackageManager
	default:
		i.manager = pkgjson.DetectPackageManager(i.dir, manifest)
	}
	if !pkgjson.IsSupportedManager(i.manager) {
		return model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("unsupported package manager %q (valid: npm, pnpm, yarn, bun)", i.manager))
	}

	log.WithFields(log.Fields{
		"dir":     i.dir,
		"manager": i.manager,
		"timeout": cfg.Timeout(),
	}).Debug("initializer configured")
	return nil
}

// CreateDirectoryStructure ensures the fixed portal directories, followed
// by any extra directories from the config file.
func (i *Initializer) CreateDirectoryStructure(ctx context.Context) error {
	dirs, err := layout.MergeDirectories(layout.DefaultDirectories(), i.cfg.ExtraDirectories)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid extraDirectories", err)
	}

	i.out.Heading("🏗️ ", "Creating project directories...")
	err = layout.EnsureDirectories(i.dir, dirs, func(dir string) {
		i.report.Directories = append(i.report.Directories, dir)
		i.out.Success("Created: %s/", dir)
	})
	if err != nil {
		return err
	}
	i.out.Heading("📁", "Directory structure created successfully!")
	return nil
}

// CreateEnvFile writes .env.example, replacing any existing file.
func (i *Initializer) CreateEnvFile(ctx context.Context) error {
	return i.writeTemplate(layout.EnvExample())
}

// CreateGitignore writes .gitignore, replacing any existing file.
func (i *Initializer) CreateGitignore(ctx context.Context) error {
	return i.writeTemplate(layout.Gitignore())
}

func (i *Initializer) writeTemplate(tmpl layout.FileTemplate) error {
	if err := layout.Write(i.dir, tmpl); err != nil {
		return err
	}
	i.report.Files = append(i.report.Files, tmpl.Path)
	i.out.Heading("📝", "Created %s file", tmpl.Path)
	return nil
}

// InitGit runs `git init` when enabled and the project is not already
// inside a repository. Failures become warnings.
func (i *Initializer) InitGit(ctx context.Context) error {
	if !i.opts.GitInit && !i.cfg.GitInit {
		return nil
	}

	created, err := i.git.EnsureRepo(ctx, i.dir)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.report.GitInit = model.StepFailed
		i.report.AddWarning("git init failed: %v", err)
		i.out.Warning("git init failed: %v", err)
	case created:
		i.report.GitInit = model.StepOK
		i.out.Heading("🌱", "Initialized empty git repository")
	default:
		i.report.GitInit = model.StepSkipped
		log.WithField("dir", i.dir).Debug("already inside a git repository")
	}
	return nil
}

// InstallDependencies runs "<manager> install". Only cancellation of ctx
// is returned as an error; every other failure is printed and recorded.
func (i *Initializer) InstallDependencies(ctx context.Context) error {
	if i.opts.SkipInstall || i.cfg.SkipInstall {
		i.report.Install = &model.InstallResult{
			PackageManager: i.manager,
			Args:           []string{"install"},
			Status:         model.StepSkipped,
			ExitCode:       -1,
			Reason:         "skipped by request",
		}
		i.out.Heading("⏭️ ", "Skipping dependency installation")
		return nil
	}

	i.out.Heading("📦", "Installing Node.js dependencies...")

	inst := installer.New(i.manager, i.dir, i.cfg.Timeout())
	var result *model.InstallResult
	err := i.out.RunWithSpinner(i.manager+" install", func() error {
		var runErr error
		result, runErr = inst.Install(ctx)
		return runErr
	})
	i.report.Install = result

	switch {
	case err == nil:
		i.out.Success("Dependencies installed successfully!")
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, installer.ErrNotFound):
		guidance := installer.Guidance(i.manager)
		i.out.Failure("%s", guidance[0])
		for _, line := range guidance[1:] {
			i.out.Indented(line)
		}
	default:
		i.out.Failure("Error installing dependencies:")
		if errors.Is(err, installer.ErrTimeout) {
			i.out.Indented(result.Reason)
		}
		i.out.Indented(installer.Tail(result.Output))
	}
	if err != nil {
		log.WithError(err).Debug("dependency installation failed")
	}
	return nil
}

// nextStep is one numbered entry of the completion banner.
type nextStep struct {
	title string
	lines []string
}

func (i *Initializer) nextSteps() []nextStep {
	return []nextStep{
		{"Configure your environment:", []string{
			"• Copy .env.example to .env",
			"• Update MongoDB URI in .env file",
		}},
		{"Start development server:", []string{i.manager + " run dev"}},
		{"Visit your application:", []string{fmt.Sprintf("http://localhost:%d", i.cfg.App.Port)}},
	}
}

// PrintNextSteps prints the completion banner and records the steps in
// the report.
func (i *Initializer) PrintNextSteps() {
	steps := i.nextSteps()

	i.out.Blank()
	i.out.Rule()
	i.out.Title("🎉 LAB EXAM PORTAL SETUP COMPLETE!")
	i.out.Rule()
	i.out.Blank()
	i.out.Println("📋 NEXT STEPS:")
	for n, step := range steps {
		i.out.Blank()
		i.out.Println("%d. %s", n+1, step.title)
		for _, line := range step.lines {
			i.out.Indented(line)
		}
		i.report.NextSteps = append(i.report.NextSteps, step.title+" "+strings.Join(step.lines, "; "))
	}
	i.out.Blank()
	i.out.Rule()
}

func (i *Initializer) interrupted(cause error) error {
	i.out.Blank()
	i.out.Warning("Setup interrupted by user.")
	return model.WrapCLIError(model.ExitInterrupted, ErrInterrupted.Error(), fmt.Errorf("%w: %v", ErrInterrupted, cause))
}
