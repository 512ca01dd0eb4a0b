package main

import (
	"os"
	"time"

	"github.com/autobrr/botmon/cmd"
	"github.com/autobrr/botmon/pkg/version"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/cobra"
)

const usage = `
▄▄▄▄·       ▄▄▄▄▄• ▌ ▄ ·.        ▐ ▄ 
▐█ ▀█▪▪     •██  ·██ ▐███▪▪     •█▌▐█
▐█▀▀█▄ ▄█▀▄  ▐█.▪▐█ ▌▐▌▐█· ▄█▀▄ ▐█▐▐▌
██▄▪▐█▐█▌.▐▌ ▐█▌·██ ██▌▐█▌▐█▌.▐▌██▐█▌
·▀▀▀▀  ▀█▄▀▪ ▀▀▀ ▀▀  █▪▀▀▀ ▀█▄▀▪▀▀ █▪

Watches a download bot, tracks its tasks from the log and reports throughput.
`

func main() {
	// setup logger
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	var rootCmd = &cobra.Command{
		Use:   "botmon",
		Short: "botmon",
		Long:  usage,
	}

	rootCmd.AddCommand(cmd.CommandRun())
	rootCmd.AddCommand(cmd.CommandStatus())
	rootCmd.AddCommand(cmd.CommandTasks())
	rootCmd.AddCommand(cmd.CommandParse())
	rootCmd.AddCommand(cmd.CommandConfig())

	rootCmd.AddCommand(CmdVersion())
	rootCmd.AddCommand(CmdUpdate())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func CmdVersion() *cobra.Command {
	var output string
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Example: `  botmon version
  botmon version --output json`,
		SilenceUsage: false,
	}

	command.Flags().StringVar(&output, "output", "text", "Print as [text, json]")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		return version.Info.Print(cmd.OutOrStdout(), output)
	}

	return command
}

func CmdUpdate() *cobra.Command {
	var command = &cobra.Command{
		Use:          "update",
		Short:        "Update botmon to latest version",
		Example:      `  botmon update`,
		SilenceUsage: false,
	}

	var verbose bool

	command.Flags().BoolVar(&verbose, "verbose", false, "Verbose output: Print changelog")

	command.Run = func(cmd *cobra.Command, args []string) {
		v, err := semver.ParseTolerant(version.Version)
		if err != nil {
			log.Error().Err(err).Msgf("could not parse version: %s", version.Version)
			return
		}

		latest, err := selfupdate.UpdateSelf(v, "autobrr/botmon")
		if err != nil {
			log.Error().Err(err).Msg("Binary update failed")
			return
		}

		if latest.Version.Equals(v) {
			log.Info().Msgf("Current binary is the latest version: %s", version.Version)
			return
		}

		log.Info().Msgf("Successfully updated to version: %s", latest.Version)

		if verbose {
			log.Info().Msgf("Release note: %s", latest.ReleaseNotes)
		}
	}

	return command
}
