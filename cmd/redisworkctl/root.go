package main

import (
	"context"
	"io"

	"github.com/adrianmcphee/rediswork"
	"github.com/adrianmcphee/rediswork/internal/schemafile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the persistent flags and shared state of one invocation.
type app struct {
	addr       string
	schemaPath string
	verbose    bool

	out    io.Writer
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "redisworkctl",
		Short: "Manage rediswork indexes and query their documents",
		Long: `redisworkctl creates and rebuilds search indexes for the entity types
declared in a schema file, and runs filtered, sorted queries against them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := rediswork.ZapConfig(a.verbose).Build()
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.addr, "addr", "", "Server address host:port (default $REDIS_ADDR or localhost:6379)")
	root.PersistentFlags().StringVar(&a.schemaPath, "schema", "rediswork.yaml", "YAML schema file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newIndexCmd(a),
		newQueryCmd(a),
		newCountCmd(a),
		newGetCmd(a),
		newExportCmd(a),
	)
	return root
}

func (a *app) schemas() (*schemafile.Set, error) {
	return schemafile.Load(a.schemaPath)
}

func (a *app) schema(typeName string) (*rediswork.Schema, error) {
	set, err := a.schemas()
	if err != nil {
		return nil, err
	}
	return set.Get(typeName)
}

func (a *app) dial(ctx context.Context) (*rediswork.RedisGateway, error) {
	return rediswork.DialRedisGateway(ctx,
		rediswork.RedisOptionsForAddr(a.addr),
		rediswork.DefaultConnectRetryConfig(),
		rediswork.NewZapLogger(a.logger),
		nil,
	)
}

// requireType registers the --type flag shared by the per-type commands.
func requireType(cmd *cobra.Command, typeName *string) {
	cmd.Flags().StringVarP(typeName, "type", "t", "", "Entity type name from the schema file")
	_ = cmd.MarkFlagRequired("type")
}
