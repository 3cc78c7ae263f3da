package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fern-energy/gridbase/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// InitResult summarizes a freshly initialized database.
type InitResult struct {
	Path        string `json:"path"`
	Version     string `json:"catalog_version"`
	Classes     int    `json:"classes"`
	Collections int    `json:"collections"`
	Properties  int    `json:"properties"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and seed a model database",
		Long: `Create a model database and seed it with the catalog.

The catalog's classes, collections, properties, and attributes are
written into the t_* tables, along with the root System object every
membership chain terminates at. By default the embedded catalog is
used; pass --catalog to seed from a CUE file instead.

Examples:
  gridbase init --db ./model.db
  gridbase init --db ./model.db --catalog ./catalog.cue
  gridbase init --db ./model.db --force`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an existing database file")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(opts.DB); err == nil {
		if !opts.Force {
			return NewExitError(ExitCommandError, fmt.Sprintf("database already exists: %s (use --force to replace it)", opts.DB))
		}
		for _, path := range []string{opts.DB, opts.DB + "-wal", opts.DB + "-shm"} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return WrapExitError(ExitCommandError, "failed to remove existing database", err)
			}
		}
	}

	cat, err := loadCatalog(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	st, err := store.Open(opts.DB, cat)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create database", err)
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to initialize database", err)
	}
	slog.Info("database initialized", "path", opts.DB, "version", cat.Version)

	result := InitResult{
		Path:        opts.DB,
		Version:     cat.Version,
		Classes:     len(cat.Classes),
		Collections: len(cat.Collections),
		Properties:  len(cat.Properties),
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (catalog %s: %d classes, %d collections, %d properties)\n",
		result.Path, result.Version, result.Classes, result.Collections, result.Properties)
	return nil
}
