package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// BackupResult names the written backup file.
type BackupResult struct {
	Target string `json:"target"`
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <target>",
		Short: "Write a compacted copy of the database",
		Long: `Write a compacted copy of the database to a new file.

The copy is made with VACUUM INTO, so it is a consistent snapshot even
while the source stays open. The target file must not exist.

Examples:
  gridbase backup --db ./model.db ./model-snapshot.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runBackup(opts *RootOptions, target string, cmd *cobra.Command) error {
	setupLogging(opts)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Backup(ctx, target); err != nil {
		return operationFailed(opts, cmd, "backup failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(BackupResult{Target: target})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", target)
	return nil
}
