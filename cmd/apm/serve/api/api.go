// Package apicmder provides the apm API server cobra command.
package apicmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/api"
	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/logger"
)

type apiCommander struct {
	listen      string
	corsOrigins []string
	debug       bool
	opts        backend.Options
	logger      *zap.Logger
}

const apiLongDesc string = `Run the apm API server for CRM users, brief generation and brief history.

The server calls the analysis service at --analysis-target for every brief.`

const apiShortDesc string = "Run the apm API server"

var apiFlags = append([]string{
	config.FlagAPIListenStandalone,
	config.FlagCORSOrigins,
}, backend.ServiceFlags...)

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, configDir, err := backend.Viper(cmd, apiFlags...)
			if err != nil {
				return err
			}

			cmder.listen = v.GetString("api.listen")
			cmder.corsOrigins = config.StringSlice(v, "api.cors_origins")
			cmder.opts, err = backend.LoadOptions(v, configDir)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, backend.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringSliceFlag(cmd, backend.Flags, config.FlagCORSOrigins, &cmder.corsOrigins)
	backend.AddServiceFlags(cmd)

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	stack, err := backend.Build(ctx, c.opts, c.logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.Analyzer.Health(ctx); err != nil {
		c.logger.Warn("analysis service is not reachable yet",
			zap.String("target", c.opts.AnalysisTarget),
			zap.Error(err),
		)
	}

	config := api.Config{
		ListenAddr:  c.listen,
		CORSOrigins: c.corsOrigins,
	}

	server, err := api.NewServer(config, stack.Service, c.logger)
	if err != nil {
		return err
	}

	return server.Run()
}
