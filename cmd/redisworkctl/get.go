package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/adrianmcphee/rediswork"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var typeName string
	var raw bool
	cmd := &cobra.Command{
		Use:   "get [key values...]",
		Short: "Read one document by its key values",
		Long:  `Read one document. Key values are given in key order, e.g. "get --type Order ada 2".`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := a.schema(typeName)
			if err != nil {
				return err
			}
			values := make([]interface{}, len(args))
			for i, v := range args {
				values[i] = v
			}
			key, err := schema.KeyBuilder().Key(values...)
			if err != nil {
				return err
			}

			gw, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			doc, err := gw.GetDocument(ctx, key)
			if err != nil {
				return err
			}
			if doc == nil {
				return rediswork.WithContext(rediswork.ErrNotFound, map[string]interface{}{
					"key": key,
				})
			}

			names := schema.FieldNames()
			if raw {
				names = doc.Names()
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "key\t%s\n", doc.ID)
			for _, name := range names {
				if v, ok := doc.Get(name); ok {
					fmt.Fprintf(tw, "%s\t%s\n", name, v)
				}
			}
			return tw.Flush()
		},
	}
	requireType(cmd, &typeName)
	cmd.Flags().BoolVar(&raw, "raw", false, "Show every stored field, tag fields included")
	return cmd
}
