package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fern-energy/gridbase/internal/store"
)

// ObjectsOptions holds flags for the objects command.
type ObjectsOptions struct {
	*RootOptions
	Class    string
	Category string
}

// ObjectInfo is one listed object.
type ObjectInfo struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	GUID        string `json:"guid,omitempty"`
}

// NewObjectsCommand creates the objects command.
func NewObjectsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ObjectsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "objects",
		Short: "List objects of a class",
		Long: `List the objects of a class, ordered by name.

Examples:
  gridbase objects --db ./model.db --class Generator
  gridbase objects --db ./model.db --class Generator --category Thermal
  gridbase objects --db ./model.db --class Fuel --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObjects(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Class, "class", "", "class to list (required)")
	_ = cmd.MarkFlagRequired("class")
	cmd.Flags().StringVar(&opts.Category, "category", "", "restrict to one category")

	return cmd
}

func runObjects(opts *ObjectsOptions, cmd *cobra.Command) error {
	setupLogging(opts.RootOptions)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	listOpts := []store.ListOption{}
	if opts.Category != "" {
		listOpts = append(listOpts, store.InCategory(opts.Category))
	}
	objects, err := st.ListObjects(ctx, opts.Class, listOpts...)
	if err != nil {
		return operationFailed(opts.RootOptions, cmd, "failed to list objects", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		infos := make([]ObjectInfo, len(objects))
		for i, obj := range objects {
			infos[i] = ObjectInfo{Name: obj.Name, Category: obj.Category, Description: obj.Description, GUID: obj.GUID}
		}
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(objects) == 0 {
		fmt.Fprintf(w, "No %s objects\n", opts.Class)
		return nil
	}
	rows := make([][]string, len(objects))
	for i, obj := range objects {
		rows[i] = []string{obj.Name, obj.Category, obj.Description}
	}
	renderTable(w, []string{"NAME", "CATEGORY", "DESCRIPTION"}, rows)
	return nil
}

// operationFailed reports a store operation error in the configured
// format and converts it to an operation-failure exit code.
func operationFailed(opts *RootOptions, cmd *cobra.Command, message string, err error) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	_ = formatter.Error(errorCode(err), err.Error(), nil)
	return WrapExitError(ExitFailure, message, err)
}
