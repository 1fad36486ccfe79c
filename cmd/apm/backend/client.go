package backend

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/apiclient"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/logger"
)

// Client is an API client configured from a command's flags.
type Client struct {
	*apiclient.Client

	Viper     *viper.Viper
	ConfigDir string
	Logger    *zap.Logger
}

// AddClientFlags registers the --api-target flag on cmd.
func AddClientFlags(cmd *cobra.Command) {
	var target string
	config.AddStringFlag(cmd, Flags, config.FlagAPITarget, &target)
}

// NewClient resolves client.api_target for cmd and returns a Client for it.
// Extra registry keys are bound alongside the API target.
func NewClient(cmd *cobra.Command, keys ...string) (*Client, error) {
	v, configDir, err := Viper(cmd, append([]string{config.FlagAPITarget}, keys...)...)
	if err != nil {
		return nil, err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	log := logger.NewCLILogger(debug)

	c, err := apiclient.NewClient(apiclient.Config{
		Target: v.GetString("client.api_target"),
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	return &Client{
		Client:    c,
		Viper:     v,
		ConfigDir: configDir,
		Logger:    log,
	}, nil
}
