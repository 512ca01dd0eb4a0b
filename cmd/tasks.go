package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/autobrr/botmon/pkg/history"
	"github.com/autobrr/botmon/pkg/registry"
	"github.com/autobrr/botmon/pkg/task"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func CommandTasks() *cobra.Command {
	var command = &cobra.Command{
		Use:          "tasks",
		Short:        "tasks subcommands",
		Example:      `  botmon tasks list`,
		SilenceUsage: false,
	}

	var f clientFlags
	f.register(command)

	command.AddCommand(CommandTasksList(&f))
	command.AddCommand(CommandTasksClear(&f))
	command.AddCommand(CommandTasksHistory(&f))

	return command
}

func CommandTasksList(f *clientFlags) *cobra.Command {
	var command = &cobra.Command{
		Use:          "list",
		Short:        "List tracked tasks",
		Example:      `  botmon tasks list --output json`,
		SilenceUsage: true,
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		snap, err := f.client().GetTasks(cmd.Context())
		if err != nil {
			return err
		}

		if f.output == "json" {
			return printJSON(cmd.OutOrStdout(), snap)
		}

		return printTasks(cmd.OutOrStdout(), snap.Tasks)
	}

	return command
}

func CommandTasksClear(f *clientFlags) *cobra.Command {
	var command = &cobra.Command{
		Use:   "clear",
		Short: "Remove finished tasks",
		Example: `  botmon tasks clear
  botmon tasks clear --type all`,
		SilenceUsage: true,
	}

	var filter string
	command.Flags().StringVar(&filter, "type", string(registry.ClearCompleted), "Which tasks to clear [completed, all]")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		clearFilter := registry.ClearFilter(filter)
		if !clearFilter.Valid() {
			return errors.Errorf("unknown clear type: %q", filter)
		}

		n, err := f.client().ClearTasks(cmd.Context(), clearFilter)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d tasks\n", n)
		return nil
	}

	return command
}

func printTasks(out io.Writer, tasks []task.Task) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSIZE\tSTARTED\tFILENAME")
	for _, t := range tasks {
		size := "-"
		if t.Total > 0 {
			size = humanize.IBytes(uint64(t.Downloaded)) + "/" + humanize.IBytes(uint64(t.Total))
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\t%s\n",
			t.ID,
			t.Status,
			t.Progress,
			size,
			humanize.Time(t.StartTime),
			t.Filename,
		)
	}

	return w.Flush()
}

func CommandTasksHistory(f *clientFlags) *cobra.Command {
	var command = &cobra.Command{
		Use:   "history",
		Short: "List archived finished tasks",
		Example: `  botmon tasks history --limit 20
  botmon tasks history --summary`,
		SilenceUsage: true,
	}

	var (
		limit   int
		summary bool
	)
	command.Flags().IntVar(&limit, "limit", history.DefaultLimit, "Number of tasks to show")
	command.Flags().BoolVar(&summary, "summary", false, "Print totals per status instead")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		c := f.client()

		if summary {
			sum, err := c.GetHistorySummary(cmd.Context())
			if err != nil {
				return err
			}
			if f.output == "json" {
				return printJSON(cmd.OutOrStdout(), sum)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for status, n := range sum.ByStatus {
				fmt.Fprintf(w, "%s\t%d\n", status, n)
			}
			fmt.Fprintf(w, "total\t%d (%s)\n", sum.Total, humanize.IBytes(uint64(sum.Bytes)))
			return w.Flush()
		}

		entries, err := c.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if f.output == "json" {
			return printJSON(cmd.OutOrStdout(), entries)
		}

		tasks := make([]task.Task, 0, len(entries))
		for _, e := range entries {
			tasks = append(tasks, e.Task)
		}
		return printTasks(cmd.OutOrStdout(), tasks)
	}

	return command
}
