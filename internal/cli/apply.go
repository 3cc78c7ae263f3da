package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fern-energy/gridbase/internal/dataset"
)

// ApplySummary reports what an apply run wrote.
type ApplySummary struct {
	Objects     int `json:"objects"`
	Memberships int `json:"memberships"`
	Values      int `json:"values"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <dataset.yaml>",
		Short: "Apply a YAML dataset to the database",
		Long: `Apply a declarative YAML dataset to the database.

The dataset's sections run in order: object batches, membership edges,
property records. Object batches are all-or-nothing; the chunked
membership and property sections keep the chunks that committed before
a failure.

Examples:
  gridbase apply --db ./model.db fleet.yaml
  gridbase apply --db ./model.db fleet.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runApply(opts *RootOptions, path string, cmd *cobra.Command) error {
	setupLogging(opts)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := dataset.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}

	st, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	slog.Info("applying dataset", "path", path,
		"object_groups", len(d.Objects), "membership_groups", len(d.Memberships), "property_groups", len(d.Properties))

	sum, err := d.Apply(ctx, st)
	if err != nil {
		message := fmt.Sprintf("failed to apply dataset (committed %d objects, %d memberships, %d values)",
			sum.Objects, sum.Memberships, sum.Values)
		return operationFailed(opts, cmd, message, err)
	}

	result := ApplySummary{Objects: sum.Objects, Memberships: sum.Memberships, Values: sum.Values}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %s: %d objects, %d memberships, %d values\n",
		path, result.Objects, result.Memberships, result.Values)
	return nil
}
