// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/api"
	"github.com/papercomputeco/apm/cmd/apm/backend"
	apicmder "github.com/papercomputeco/apm/cmd/apm/serve/api"
	mockcmder "github.com/papercomputeco/apm/cmd/apm/serve/mock"
	"github.com/papercomputeco/apm/pkg/analysis/mockserver"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/logger"
)

type ServeCommander struct {
	apiListen   string
	mockListen  string
	corsOrigins []string
	stepDelay   time.Duration
	debug       bool
	opts        backend.Options
	logger      *zap.Logger
}

const serveLongDesc string = `Run apm services.

Use subcommands to run individual services or all services together:
  apm serve          Run the API server and an in-process mock analysis service
  apm serve api      Run just the API server
  apm serve mock     Run just the mock analysis service

When both run together the API always talks to the in-process mock.`

const serveShortDesc string = "Run apm services"

var serveFlags = append([]string{
	config.FlagAPIListen,
	config.FlagMockListen,
	config.FlagCORSOrigins,
}, backend.ServiceFlags...)

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, configDir, err := backend.Viper(cmd, serveFlags...)
			if err != nil {
				return err
			}

			cmder.apiListen = v.GetString("api.listen")
			cmder.mockListen = v.GetString("analysis.listen")
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

	config.AddStringFlag(cmd, backend.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, backend.Flags, config.FlagMockListen, &cmder.mockListen)
	config.AddStringSliceFlag(cmd, backend.Flags, config.FlagCORSOrigins, &cmder.corsOrigins)
	backend.AddServiceFlags(cmd)
	cmd.Flags().DurationVar(&cmder.stepDelay, "step-delay", mockserver.DefaultStepDelay, "Pause between mock analysis events")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(mockcmder.NewMockCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	mockLn, err := net.Listen("tcp", c.mockListen)
	if err != nil {
		return fmt.Errorf("listening for mock analysis service: %w", err)
	}
	mock := mockserver.New(mockserver.Config{ListenAddr: c.mockListen, StepDelay: c.stepDelay}, c.logger)
	defer mock.Close()

	// The API reaches the mock over loopback whatever interface it binds.
	c.opts.AnalysisTarget = fmt.Sprintf("http://127.0.0.1:%d", mockLn.Addr().(*net.TCPAddr).Port)

	stack, err := backend.Build(ctx, c.opts, c.logger)
	if err != nil {
		mockLn.Close()
		return err
	}
	defer stack.Close()

	apiServer, err := api.NewServer(api.Config{
		ListenAddr:  c.apiListen,
		CORSOrigins: c.corsOrigins,
	}, stack.Service, c.logger)
	if err != nil {
		mockLn.Close()
		return fmt.Errorf("creating API server: %w", err)
	}
	defer apiServer.Shutdown()

	c.logger.Info("starting apm",
		zap.String("api_addr", c.apiListen),
		zap.String("mock_addr", mockLn.Addr().String()),
	)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := mock.RunWithListener(mockLn); err != nil {
			errChan <- fmt.Errorf("mock analysis error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
