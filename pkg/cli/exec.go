package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quimdev/dbman"
)

// NewExecCmd builds the `exec` command: run one raw SQL statement with
// named parameters and print the tabular result.
func NewExecCmd(flags *rootFlags) *cobra.Command {
	var (
		params []string
		asCSV  bool
	)

	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Execute a raw SQL statement",
		Long: `Execute a parameterized SQL statement and print the result.

Named placeholders use the :name form and are bound with --param:

  dbman exec "SELECT id FROM users WHERE active = :a" --param a=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound, err := parseParams(params)
			if err != nil {
				return err
			}
			m, err := flags.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			res, err := m.SQLRaw(cmd.Context(), args[0], bound)
			if err != nil {
				return err
			}
			if asCSV {
				return res.WriteCSV(cmd.OutOrStdout())
			}
			return printTable(cmd, res)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "Named parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Emit CSV instead of an aligned table")
	return cmd
}

// parseParams turns name=value flags into a parameter map, coercing
// values that read as integers, floats or booleans.
func parseParams(params []string) (map[string]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		name, value, found := strings.Cut(p, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --param %q, want name=value", p)
		}
		out[name] = coerce(value)
	}
	return out, nil
}

func coerce(value string) any {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

func printTable(cmd *cobra.Command, res *dbman.Result) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))
	for _, rec := range res.Records() {
		cells := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			v := rec[col]
			if v == nil {
				cells[i] = "NULL"
			} else if b, ok := v.([]byte); ok {
				cells[i] = string(b)
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "(%d rows in %s)\n", res.Len(), res.Duration)
	return nil
}
