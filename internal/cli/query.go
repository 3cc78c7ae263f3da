package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// QueryResult holds raw rows with their column order preserved.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql> [args...]",
		Short: "Run raw SQL against the database",
		Long: `Run raw SQL against the database.

This is the escape hatch for reading the t_* tables directly.
Positional arguments after the SQL bind to ? placeholders in order.

Examples:
  gridbase query --db ./model.db "SELECT name FROM t_class ORDER BY class_id"
  gridbase query --db ./model.db "SELECT name FROM t_object WHERE class_id = ?" 2
  gridbase query --db ./model.db "SELECT COUNT(*) AS n FROM t_data" --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runQuery(opts *RootOptions, query string, bindArgs []string, cmd *cobra.Command) error {
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

	args := make([]any, len(bindArgs))
	for i, a := range bindArgs {
		args[i] = a
	}

	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return operationFailed(opts, cmd, "query failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return operationFailed(opts, cmd, "query failed", err)
	}

	result := QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return operationFailed(opts, cmd, "query failed", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return operationFailed(opts, cmd, "query failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if len(result.Rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}
	cells := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = formatCell(v)
		}
	}
	renderTable(w, columns, cells)
	fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
	return nil
}

// formatCell renders one SQL value for text output.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
