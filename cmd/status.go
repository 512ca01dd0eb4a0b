package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/autobrr/botmon/pkg/monitor"

	"github.com/spf13/cobra"
)

func CommandStatus() *cobra.Command {
	var command = &cobra.Command{
		Use:   "status",
		Short: "Print worker status of a running monitor",
		Example: `  botmon status
  botmon status --addr http://nas:8080 --output json`,
		SilenceUsage: true,
	}

	var f clientFlags
	f.register(command)

	command.RunE = func(cmd *cobra.Command, args []string) error {
		st, err := f.client().GetStatus(cmd.Context())
		if err != nil {
			return err
		}

		if f.output == "json" {
			return printJSON(cmd.OutOrStdout(), st)
		}

		return printStatus(cmd, st)
	}

	return command
}

func printStatus(cmd *cobra.Command, st *monitor.Status) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Status:\t%s\n", st.Status)
	fmt.Fprintf(w, "PID:\t%s\n", st.Pid)
	fmt.Fprintf(w, "Uptime:\t%s\n", st.Uptime)
	fmt.Fprintf(w, "CPU:\t%.1f%%\n", st.CPU)
	fmt.Fprintf(w, "Memory:\t%s (%.1f%%)\n", st.Memory, st.MemoryPercent)
	fmt.Fprintf(w, "Threads:\t%s\n", st.Threads)
	fmt.Fprintf(w, "Download:\t%s (total %s)\n", st.DownloadSpeed, st.TotalDownload)
	fmt.Fprintf(w, "Upload:\t%s (total %s)\n", st.UploadSpeed, st.TotalUpload)
	fmt.Fprintf(w, "System:\t↓ %s  ↑ %s\n", st.SysDownload, st.SysUpload)
	if st.Disk != nil {
		fmt.Fprintf(w, "Disk:\t%s free of %s (%.1f%% used)\n", st.Disk.AvailableText, st.Disk.TotalText, st.Disk.UsedPercent)
	}
	fmt.Fprintf(w, "Tasks:\t%d active, %d total\n", st.ActiveTasks, st.TaskCount)
	fmt.Fprintf(w, "Updated:\t%s\n", st.LastUpdate)

	return w.Flush()
}
