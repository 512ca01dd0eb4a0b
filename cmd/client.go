package cmd

import (
	"encoding/json"
	"io"
	"os"

	monitorclient "github.com/autobrr/botmon/pkg/monitor/client"

	"github.com/spf13/cobra"
)

type clientFlags struct {
	addr     string
	token    string
	insecure bool
	output   string
}

func (f *clientFlags) register(command *cobra.Command) {
	command.PersistentFlags().StringVar(&f.addr, "addr", envOr("BOTMON_ADDR", "http://localhost:8080"), "Monitor address")
	command.PersistentFlags().StringVar(&f.token, "token", os.Getenv("BOTMON_TOKEN"), "API token")
	command.PersistentFlags().BoolVar(&f.insecure, "insecure", false, "Skip TLS verification")
	command.PersistentFlags().StringVar(&f.output, "output", "text", "Print as [text, json]")
}

func (f *clientFlags) client() *monitorclient.Client {
	var opts []monitorclient.Option
	if f.insecure {
		opts = append(opts, monitorclient.WithInsecure())
	}
	return monitorclient.NewClient(f.addr, f.token, opts...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
