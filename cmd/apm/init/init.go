// Package initcmder provides the init command for initializing a local .apm
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/config"
)

const (
	dirName = ".apm"
)

const initLongDesc string = `Initialize a new .apm/ directory in the current working directory.

Creates a local .apm/ directory that takes precedence over the default
~/.apm/ directory for configuration, the SQLite database and CLI state.

With --preset a config.toml for a deployment shape is written too:
  demo         in-memory storage, nothing persisted
  local        SQLite storage in .apm/
  production   PostgreSQL storage and Kafka brief events

Examples:
  apm init
  apm init --preset demo
  apm init --preset production --force`

const initShortDesc string = "Initialize a local .apm/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Write a preset config ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run() error {
	var preset *config.Config
	if c.preset != "" {
		p, err := config.PresetConfig(c.preset)
		if err != nil {
			return err
		}
		preset = p
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .apm directory: %w", err)
		}
		fmt.Printf("Initialized .apm directory: %s\n", dir)
	}

	if preset == nil {
		return nil
	}
	return c.writePreset(dir, preset)
}

func (c *initCommander) writePreset(dir string, preset *config.Config) error {
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil && !c.force {
		return fmt.Errorf("%s already exists; pass --force to overwrite it", cfger.GetTarget())
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(preset); err != nil {
		return err
	}

	fmt.Printf("  %s Wrote %s preset to %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(c.preset),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}
