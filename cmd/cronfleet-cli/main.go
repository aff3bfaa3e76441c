package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/cronfleet/internal/cli"
)

var version = "dev"

func main() {
	var (
		apiURL   string
		jsonMode bool
	)

	rootCmd := &cobra.Command{
		Use:           "cronfleet",
		Short:         "CLI for the cronfleet task scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("CRONFLEET_API_URL", "http://localhost:8080"), "cronfleet API base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonMode, "json", false, "Output in JSON format")

	// Замыкания создают Client и Output после парсинга флагов
	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonMode) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewHistoryCmd(clientFn, outputFn),
		cli.NewStatsCmd(clientFn, outputFn),
		cli.NewSchedulerCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
