package main

import (
	"errors"
	"fmt"

	"github.com/adrianmcphee/rediswork"
	"github.com/adrianmcphee/rediswork/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var typeName, where string
	var indexOnly, dataOnly bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an index definition and its documents as a redis-cli script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexOnly && dataOnly {
				return errors.New("--index-only and --data-only are mutually exclusive")
			}
			ctx := cmd.Context()
			schema, err := a.schema(typeName)
			if err != nil {
				return err
			}
			if indexOnly {
				fmt.Fprint(cmd.OutOrStdout(), export.IndexToCommand(schema))
				return nil
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

			rows, err := rediswork.ExecuteQuery(ctx, gw, schema, rediswork.QuerySpec{Filter: filter})
			if err != nil {
				return err
			}

			var output string
			if dataOnly {
				output, err = export.ExportRows(schema, rows)
			} else {
				output, err = export.Export(schema, rows)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), output)
			return nil
		},
	}
	requireType(cmd, &typeName)
	cmd.Flags().StringVarP(&where, "where", "w", "", "SQL WHERE clause body")
	cmd.Flags().BoolVar(&indexOnly, "index-only", false, "Export only the index definition")
	cmd.Flags().BoolVar(&dataOnly, "data-only", false, "Export only the documents")
	return cmd
}
