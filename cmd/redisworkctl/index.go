package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, drop and rebuild search indexes",
	}
	cmd.AddCommand(
		newIndexCreateCmd(a),
		newIndexDropCmd(a),
		newIndexRebuildCmd(a),
		newIndexBootstrapCmd(a),
	)
	return cmd
}

func newIndexCreateCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the index of one type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.schema(typeName)
			if err != nil {
				return err
			}
			gw, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := gw.CreateIndex(cmd.Context(), schema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", schema.IndexName())
			return nil
		},
	}
	requireType(cmd, &typeName)
	return cmd
}

func newIndexDropCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the index of one type, keeping its documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.schema(typeName)
			if err != nil {
				return err
			}
			gw, err := a.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := gw.DropIndex(cmd.Context(), schema.IndexName()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", schema.IndexName())
			return nil
		},
	}
	requireType(cmd, &typeName)
	return cmd
}

func newIndexRebuildCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Drop the index of one type if present and create it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schema, err := a.schema(typeName)
			if err != nil {
				return err
			}
			gw, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			exists, err := gw.IndexExists(ctx, schema.IndexName())
			if err != nil {
				return err
			}
			if exists {
				if err := gw.DropIndex(ctx, schema.IndexName()); err != nil {
					return err
				}
			}
			if err := gw.CreateIndex(ctx, schema); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s\n", schema.IndexName())
			return nil
		},
	}
	requireType(cmd, &typeName)
	return cmd
}

func newIndexBootstrapCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Wipe the server and create the index of every type (destructive)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("bootstrap runs FLUSHALL; pass --yes to confirm")
			}
			ctx := cmd.Context()
			set, err := a.schemas()
			if err != nil {
				return err
			}
			gw, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := gw.FlushAll(ctx); err != nil {
				return err
			}
			for _, schema := range set.All() {
				if err := gw.CreateIndex(ctx, schema); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", schema.IndexName())
			}
			a.logger.Warn("server wiped and indexes bootstrapped", zap.Int("types", len(set.All())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive FLUSHALL")
	return cmd
}
