package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fern-energy/gridbase/internal/resolve"
)

// PropertiesOptions holds flags for the properties command.
type PropertiesOptions struct {
	*RootOptions
	Class      string
	Object     string
	Scenario   string
	Collection string
	Properties []string
}

// PropertyInfo is one resolved property value.
type PropertyInfo struct {
	Property     string  `json:"property"`
	Value        float64 `json:"value"`
	Band         int     `json:"band"`
	Unit         string  `json:"unit,omitempty"`
	Scenario     string  `json:"scenario,omitempty"`
	FilePath     string  `json:"file_path,omitempty"`
	Timeslice    string  `json:"timeslice,omitempty"`
	Variable     string  `json:"variable,omitempty"`
	DateFrom     string  `json:"date_from,omitempty"`
	DateTo       string  `json:"date_to,omitempty"`
	Memo         string  `json:"memo,omitempty"`
	MembershipID int64   `json:"membership_id"`
}

// NewPropertiesCommand creates the properties command.
func NewPropertiesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PropertiesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Resolve effective property values for an object",
		Long: `Resolve the effective property values of an object.

Without --scenario the base data is returned. With --scenario, rows
tagged with that scenario override their base counterparts and rows
tagged with other scenarios are ignored.

Examples:
  gridbase properties --db ./model.db --class Generator --object gen-01
  gridbase properties --db ./model.db --class Generator --object gen-01 --scenario "High Demand"
  gridbase properties --db ./model.db --class Generator --object gen-01 --property "Max Capacity"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProperties(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Class, "class", "", "object's class (required)")
	_ = cmd.MarkFlagRequired("class")
	cmd.Flags().StringVar(&opts.Object, "object", "", "object name (required)")
	_ = cmd.MarkFlagRequired("object")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "scenario to activate")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "restrict to one collection")
	cmd.Flags().StringArrayVar(&opts.Properties, "property", nil, "restrict to named properties (repeatable)")

	return cmd
}

func runProperties(opts *PropertiesOptions, cmd *cobra.Command) error {
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

	resolveOpts := []resolve.Option{}
	if opts.Scenario != "" {
		resolveOpts = append(resolveOpts, resolve.WithScenario(opts.Scenario))
	}
	if opts.Collection != "" {
		resolveOpts = append(resolveOpts, resolve.WithCollection(opts.Collection))
	}
	if len(opts.Properties) > 0 {
		resolveOpts = append(resolveOpts, resolve.WithProperties(opts.Properties...))
	}

	values, err := resolve.New(st).Resolve(ctx, opts.Class, opts.Object, resolveOpts...)
	if err != nil {
		return operationFailed(opts.RootOptions, cmd, "failed to resolve properties", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		infos := make([]PropertyInfo, len(values))
		for i, v := range values {
			infos[i] = PropertyInfo{
				Property:     v.Property,
				Value:        v.Value,
				Band:         v.Band,
				Unit:         v.Unit,
				Scenario:     v.Scenario,
				FilePath:     v.FilePath,
				Timeslice:    v.Timeslice,
				Variable:     v.VariableText,
				DateFrom:     v.DateFrom,
				DateTo:       v.DateTo,
				Memo:         v.Memo,
				MembershipID: v.MembershipID,
			}
		}
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(values) == 0 {
		fmt.Fprintf(w, "No property data for %s %q\n", opts.Class, opts.Object)
		return nil
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{
			v.Property,
			strconv.Itoa(v.Band),
			strconv.FormatFloat(v.Value, 'g', -1, 64),
			v.Unit,
			v.Scenario,
		}
	}
	renderTable(w, []string{"PROPERTY", "BAND", "VALUE", "UNIT", "SCENARIO"}, rows)

	for _, v := range values {
		formatter.VerboseLog("%s band %d: membership=%d data=%d file=%q timeslice=%q dates=%q..%q",
			v.Property, v.Band, v.MembershipID, v.DataID, v.FilePath, v.Timeslice, v.DateFrom, v.DateTo)
	}
	return nil
}
