// Package mockcmder provides the mock analysis service cobra command.
package mockcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/analysis/mockserver"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/logger"
)

type mockCommander struct {
	listen    string
	stepDelay time.Duration
	debug     bool
}

const mockLongDesc string = `Run a mock analysis service.

The mock speaks the same HTTP and SSE protocol as the real agent service and
derives a deterministic brief from the users it is sent. Use it for demos
and local development.`

const mockShortDesc string = "Run the mock analysis service"

func NewMockCmd() *cobra.Command {
	cmder := &mockCommander{}

	cmd := &cobra.Command{
		Use:   "mock",
		Short: mockShortDesc,
		Long:  mockLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, _, err := backend.Viper(cmd, config.FlagMockListenStandalone)
			if err != nil {
				return err
			}
			cmder.listen = v.GetString("analysis.listen")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, backend.Flags, config.FlagMockListenStandalone, &cmder.listen)
	cmd.Flags().DurationVar(&cmder.stepDelay, "step-delay", mockserver.DefaultStepDelay, "Pause between streamed events")

	return cmd
}

func (c *mockCommander) run() error {
	log := logger.NewLogger(c.debug)
	defer log.Sync()

	server := mockserver.New(mockserver.Config{
		ListenAddr: c.listen,
		StepDelay:  c.stepDelay,
	}, log)
	return server.Run()
}
