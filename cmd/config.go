package cmd

import (
	"fmt"
	"os"

	"github.com/autobrr/botmon/pkg/monitor"
	"github.com/autobrr/botmon/pkg/token"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func CommandConfig() *cobra.Command {
	var command = &cobra.Command{
		Use:          "config",
		Short:        "config subcommands",
		Example:      `  botmon config init --config-file config.yaml`,
		SilenceUsage: false,
	}

	command.AddCommand(CommandConfigInit())

	return command
}

func CommandConfigInit() *cobra.Command {
	var command = &cobra.Command{
		Use:          "init",
		Short:        "Write a config file with defaults and a fresh API token",
		Example:      `  botmon config init --config-file ~/.config/botmon/config.yaml`,
		SilenceUsage: true,
	}

	var (
		configPath string
		force      bool
	)

	command.Flags().StringVar(&configPath, "config-file", "config.yaml", "Path to config file")
	command.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !force {
			return errors.Errorf("config file %q already exists, use --force to overwrite", configPath)
		}

		apiToken, err := token.NewGenerator(token.DefaultLength).GenerateToken()
		if err != nil {
			return errors.Wrap(err, "could not generate api token")
		}

		cfg := monitor.NewConfig()
		cfg.Http.Token = apiToken

		if err := cfg.WriteFile(configPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	}

	return command
}
