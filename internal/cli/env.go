// Package cli: env.go implements "portal-setup env", which turns
// .env.example into a working .env with a freshly generated JWT secret.
package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portal-setup/internal/envfile"
	"github.com/shinji-kodama/portal-setup/internal/model"
)

type envFlags struct {
	dir      string
	mongoURI string
	port     int
	force    bool
}

// NewEnvCommand creates the "env" command.
func NewEnvCommand() *cobra.Command {
	flags := &envFlags{}

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Create .env from .env.example",
		Long: `Create .env from the project's .env.example.

JWT_SECRET is replaced with a random 64-character hex secret. MONGODB_URI
and PORT are replaced when --mongodb-uri or --port is given. Comments and
key order are kept. An existing .env is never overwritten without --force.

Examples:
  portal-setup env
  portal-setup env --mongodb-uri mongodb://localhost:27017/lab_exam_portal
  portal-setup env --port 8080 --force`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", ".", "Project directory")
	cmd.Flags().StringVar(&flags.mongoURI, "mongodb-uri", "", "Value for MONGODB_URI")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Value for PORT")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing .env")

	return cmd
}

func runEnv(cmd *cobra.Command, flags *envFlags) error {
	if flags.port < 0 || flags.port > 65535 {
		return model.NewCLIError(model.ExitConfigInvalid, fmt.Sprintf("--port %d out of range (1-65535)", flags.port))
	}
	if flags.mongoURI != "" && !strings.HasPrefix(flags.mongoURI, "mongodb://") && !strings.HasPrefix(flags.mongoURI, "mongodb+srv://") {
		return model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("--mongodb-uri %q must start with mongodb:// or mongodb+srv://", flags.mongoURI))
	}

	dir, err := filepath.Abs(flags.dir)
	if err != nil {
		return fmt.Errorf("resolve project directory %q: %w", flags.dir, err)
	}

	result, err := envfile.Materialize(dir, envfile.Options{
		MongoURI: flags.mongoURI,
		Port:     flags.port,
		Force:    flags.force,
	})
	if err != nil {
		if errors.Is(err, envfile.ErrExists) {
			return model.WrapCLIError(model.ExitEnvFileExists, ".env already exists", err)
		}
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	out := newPrinter(cmd)
	out.Heading("📝", "Created %s from %s", envfile.FileName, result.Source)
	out.Success("Set: %s", strings.Join(result.Set, ", "))
	return nil
}
