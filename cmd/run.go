package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/autobrr/botmon/pkg/monitor"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func CommandRun() *cobra.Command {
	var command = &cobra.Command{
		Use:   "run",
		Short: "Run the monitor",
		Example: `  botmon run --config-file config.yaml
  saveany-bot 2>&1 | botmon run --log-file -`,
		SilenceUsage: false,
	}

	var (
		configPath  string
		host        string
		port        string
		token       string
		logFile     string
		processName string
		pid         uint64
	)

	command.Flags().StringVar(&configPath, "config-file", "", "Path to config file")
	command.Flags().StringVar(&host, "http-host", "", "HTTP Host. Default: all interfaces")
	command.Flags().StringVar(&port, "http-port", "8080", "HTTP port")
	command.Flags().StringVar(&token, "http-api-token", "", "API token")
	command.Flags().StringVar(&logFile, "log-file", "", "Worker log file to follow, - for stdin")
	command.Flags().StringVar(&processName, "process-name", "saveany-bot", "Worker process name")
	command.Flags().Uint64Var(&pid, "pid", 0, "Worker pid, skips lookup by name")

	command.Run = func(cmd *cobra.Command, args []string) {
		cfg := monitor.NewConfig()

		if err := cfg.LoadFromFile(configPath); err != nil {
			log.Fatal().Err(err).Msgf("could not load config from file: %s", configPath)
		}

		// flags win over file and env
		flags := cmd.Flags()
		if flags.Changed("http-host") {
			cfg.Http.Host = host
		}
		if flags.Changed("http-port") {
			cfg.Http.Port = port
		}
		if flags.Changed("http-api-token") {
			cfg.Http.Token = token
		}
		if flags.Changed("log-file") {
			cfg.Monitor.LogFile = logFile
		}
		if flags.Changed("process-name") {
			cfg.Monitor.ProcessName = processName
		}
		if flags.Changed("pid") {
			cfg.Monitor.Pid = pid
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := monitor.NewService(cfg)
		if err := app.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("monitor stopped")
		}

		log.Info().Msg("monitor stopped")
	}

	return command
}
