package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/adrianmcphee/rediswork"
	"github.com/adrianmcphee/rediswork/internal/sqlwhere"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type queryFlags struct {
	typeName string
	where    string
	sort     []string
	desc     bool
	skip     int
	take     int
	json     bool
}

func newQueryCmd(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a filtered, sorted query against one type",
		Long: `Run a query against one type. --where takes a SQL WHERE clause body;
--sort takes field names, a leading "-" sorts that field descending.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := a.schema(f.typeName)
			if err != nil {
				return err
			}
			spec, err := buildSpec(schema, f.where, f.sort, f.desc, f.skip, f.take)
			if err != nil {
				return err
			}
			a.logger.Debug("query compiled",
				zap.String("type", schema.TypeName()),
				zap.String("filter", spec.Filter),
				zap.Int("sort_keys", len(spec.Sort)),
			)

			gw, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			rows, err := rediswork.ExecuteQuery(ctx, gw, schema, spec)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			return writeTable(cmd.OutOrStdout(), schema.FieldNames(), rows)
		},
	}
	requireType(cmd, &f.typeName)
	cmd.Flags().StringVarP(&f.where, "where", "w", "", "SQL WHERE clause body, e.g. \"Age > 30 AND Name LIKE 'Em%'\"")
	cmd.Flags().StringSliceVarP(&f.sort, "sort", "s", nil, "Sort fields, comma separated")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "Sort descending")
	cmd.Flags().IntVar(&f.skip, "skip", 0, "Number of results to skip")
	cmd.Flags().IntVar(&f.take, "take", 100, "Maximum number of results")
	cmd.Flags().BoolVar(&f.json, "json", false, "Output one JSON object per row")
	return cmd
}

func newCountCmd(a *app) *cobra.Command {
	var typeName, where string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count the documents of one type matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := a.schema(typeName)
			if err != nil {
				return err
			}
			filter, err := compileWhere(schema, where)
			if err != nil {
				return err
			}
			gw, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			n, err := rediswork.CountQuery(ctx, gw, schema, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	requireType(cmd, &typeName)
	cmd.Flags().StringVarP(&where, "where", "w", "", "SQL WHERE clause body")
	return cmd
}

// compileWhere turns a SQL WHERE body into a search filter; "" stays "".
func compileWhere(schema *rediswork.Schema, where string) (string, error) {
	p, err := sqlwhere.Parse(where)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", nil
	}
	return rediswork.NewCompiler(schema).Compile(p)
}

func buildSpec(schema *rediswork.Schema, where string, sortFields []string, desc bool, skip, take int) (rediswork.QuerySpec, error) {
	filter, err := compileWhere(schema, where)
	if err != nil {
		return rediswork.QuerySpec{}, err
	}

	keys := make([]rediswork.SortKey, 0, len(sortFields))
	for _, field := range sortFields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		ascending := !desc
		if strings.HasPrefix(field, "-") {
			ascending = false
			field = field[1:]
		}
		keys = append(keys, rediswork.SortKey{Field: field, Ascending: ascending})
	}
	if _, err := rediswork.NewCompiler(schema).CompileSort(keys...); err != nil {
		return rediswork.QuerySpec{}, err
	}

	return rediswork.QuerySpec{
		Filter: filter,
		Sort:   keys,
		Skip:   skip,
		Take:   take,
	}, nil
}

func writeJSON(w io.Writer, rows []rediswork.Row) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, columns []string, rows []rediswork.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, c := range columns {
			values[i] = row[c]
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}
	return tw.Flush()
}
