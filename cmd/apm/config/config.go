// Package configcmder provides the config command for managing persistent
// apm configuration stored in the .apm/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/config"
)

const configLongDesc string = `Manage persistent apm configuration.

Configuration is stored as config.toml in the .apm/ directory and provides
default values for command flags. CLI flags and APM_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  api.listen, api.cors_origins,
  analysis.target, analysis.timeout, analysis.user_limit, analysis.listen,
  client.api_target, client.thinking_interval,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  apm config set <key> <value>    Set a configuration value
  apm config get <key>            Get a configuration value
  apm config list                 List all configuration values

Examples:
  apm config set storage.driver postgres
  apm config set eventstream.brokers kafka-1:9092,kafka-2:9092
  apm config get analysis.target
  apm config list`

const configShortDesc string = "Manage persistent apm configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// open loads the Configer for configDir and prints which file is in use.
func open(configDir string) (*config.Configer, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Printf("\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
	return cfger, nil
}

func renderValue(value string) string {
	if value == "" {
		return cliui.DimStyle.Render("<not set>")
	}
	return cliui.ValueStyle.Render(value)
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
