package cmd

import (
	"os"

	"github.com/autobrr/botmon/pkg/classifier"
	"github.com/autobrr/botmon/pkg/logsource"
	"github.com/autobrr/botmon/pkg/registry"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func CommandParse() *cobra.Command {
	var command = &cobra.Command{
		Use:   "parse <file>",
		Short: "Replay a worker log file and print the resulting tasks",
		Example: `  botmon parse bot.log
  botmon parse bot.log --output json`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}

	var output string
	command.Flags().StringVar(&output, "output", "text", "Print as [text, json]")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrapf(err, "could not open %q", args[0])
		}
		defer f.Close()

		reg := registry.New(registry.Config{})

		var lines, events int
		err = logsource.Scan(cmd.Context(), f, func(line string) {
			lines++
			if ev, ok := classifier.Classify(line); ok && reg.Apply(ev) {
				events++
			}
		})
		if err != nil {
			return err
		}

		log.Debug().Msgf("replayed %d lines, %d events applied", lines, events)

		snap := reg.Snapshot()
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), snap)
		}

		return printTasks(cmd.OutOrStdout(), snap.Tasks)
	}

	return command
}
