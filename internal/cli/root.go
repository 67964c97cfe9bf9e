// Package cli implements the cobra-based CLI commands for portal-setup.
//
// The root command itself runs the project initializer, so a bare
// `portal-setup` runs the whole one-shot project setup. The
// auxiliary subcommands (env, db, doctor, config) each live in their own
// file within this package.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portal-setup/internal/config"
	"github.com/shinji-kodama/portal-setup/internal/console"
	"github.com/shinji-kodama/portal-setup/internal/model"
	"github.com/shinji-kodama/portal-setup/internal/pkgjson"
	"github.com/shinji-kodama/portal-setup/internal/setup"
)

// Global flag variables shared across all subcommands. They are bound to
// persistent flags on the root command.
var (
	// jsonOutput switches command output to JSON on stdout and errors to
	// JSON on stderr.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// quiet raises the log level to error.
	quiet bool
)

// Version, Commit and Date are injected from the main package, which
// receives them through ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// setupFlags holds the flag values of the root (initializer) command.
type setupFlags struct {
	dir            string
	configPath     string
	packageManager string
	timeout        time.Duration
	skipInstall    bool
	gitInit        bool
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	flags := &setupFlags{}

	rootCmd := &cobra.Command{
		Use:   "portal-setup",
		Short: "Scaffold a Lab Exam Portal project",
		Long: `portal-setup prepares a Lab Exam Portal checkout for development.

Run in a directory containing package.json, it creates the application
directory skeleton, writes .env.example and .gitignore, installs Node.js
dependencies and prints the next steps.

Examples:
  portal-setup
  portal-setup --dir ./lab-exam-portal --skip-install
  portal-setup --package-manager pnpm --timeout 10m
  portal-setup --json`,

		Args: cobra.NoArgs,

		// Errors are printed by Run, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setLogLevel()
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd, flags)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Only log errors")

	rootCmd.Flags().StringVar(&flags.dir, "dir", ".", "Project directory containing package.json")
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "Path to "+config.FileName+" (default: <dir>/"+config.FileName+")")
	rootCmd.Flags().StringVar(&flags.packageManager, "package-manager", "", "Package manager: npm, pnpm, yarn, bun (default: detected)")
	rootCmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Dependency installation timeout (default: 5m)")
	rootCmd.Flags().BoolVar(&flags.skipInstall, "skip-install", false, "Do not install dependencies")
	rootCmd.Flags().BoolVar(&flags.gitInit, "git-init", false, "Initialize a git repository if the project is not in one")

	rootCmd.AddCommand(NewEnvCommand())
	rootCmd.AddCommand(NewDBCommand())
	rootCmd.AddCommand(NewDoctorCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// runSetup runs the initializer against flags.dir.
func runSetup(cmd *cobra.Command, flags *setupFlags) error {
	if flags.timeout < 0 {
		return model.NewCLIError(model.ExitConfigInvalid, "--timeout must not be negative")
	}

	initializer, err := setup.New(setup.Options{
		Dir:            flags.dir,
		Printer:        newPrinter(cmd),
		PackageManager: flags.packageManager,
		SkipInstall:    flags.skipInstall,
		GitInit:        flags.gitInit,
		Timeout:        flags.timeout,
		LoadConfig: func() (*config.Config, error) {
			cfg, _, err := loadConfig(flags.dir, flags.configPath)
			return cfg, err
		},
	})
	if err != nil {
		return err
	}

	report, err := initializer.Run(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return nil
}

// loadConfig resolves dir and loads its configuration. Failures map to
// ExitConfigInvalid.
func loadConfig(dir, explicitPath string) (*config.Config, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve project directory %q: %w", dir, err)
	}
	cfg, path, err := config.LoadForProject(abs, explicitPath)
	if err != nil {
		return nil, path, model.WrapCLIError(model.ExitConfigInvalid, "invalid configuration", err)
	}
	log.WithField("path", path).Debug("configuration loaded")
	return cfg, path, nil
}

// newPrinter returns the console printer for cmd. JSON mode keeps stdout
// free for the JSON document.
func newPrinter(cmd *cobra.Command) *console.Printer {
	if jsonOutput {
		return console.Discard()
	}
	return console.New(cmd.OutOrStdout())
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func setLogLevel() {
	log.SetHandler(clihandler.New(os.Stderr))
	log.SetLevel(log.InfoLevel)

	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if quiet {
		log.SetLevel(log.ErrorLevel)
	}
}

// Run executes rootCmd with ctx and returns the process exit code.
// Errors are written to stderr in text or JSON form.
func Run(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return int(model.ExitSuccess)
	}

	if ctx.Err() != nil && !errors.Is(err, setup.ErrInterrupted) {
		err = model.WrapCLIError(model.ExitInterrupted, "interrupted", err)
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(stderr, cliErr.Message, cliErr.Err)
		return int(cliErr.Code)
	}

	printError(stderr, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// alreadyReported reports whether err was announced on the console by
// the command itself, so the text-mode error line would only repeat it.
func alreadyReported(err error) bool {
	return errors.Is(err, pkgjson.ErrMarkerMissing) || errors.Is(err, setup.ErrInterrupted)
}

// printError writes an error in the format selected by --json.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"message": message,
		}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil && alreadyReported(underlying) {
		return
	}
	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}
