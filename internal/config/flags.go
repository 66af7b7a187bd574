package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizbots",
		Short:         "Simulate a swarm of participants in a live quiz session",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.StringP("target", "u", "", "WebSocket base URL of the quiz server (ws:// or wss://)")
	flags.StringP("session", "s", "", "Session code to join")

	// Swarm shape flags
	flags.IntP("bots", "b", 5, "Number of bots to simulate")
	flags.Int("batch-size", 10, "Bots connected per wave")
	flags.Duration("batch-delay", time.Second, "Pause between connection waves")
	flags.Int("join-rate", 10, "Join messages per second within a wave")

	// Pacing flags
	flags.Duration("question-delay", 2500*time.Millisecond, "Pause after a round before requesting the next question")
	flags.Duration("answer-timeout", 20*time.Second, "Max wait for all bots to answer a question")
	flags.Duration("start-timeout", 5*time.Minute, "Max wait for the quiz to start")
	flags.Duration("grace-period", 3*time.Second, "Wait for final broadcasts after the quiz ends")
	flags.Duration("handshake-timeout", 15*time.Second, "WebSocket handshake timeout")

	// Persona flags
	flags.Float64("accuracy-min", 0.6, "Lower bound of per-bot answer accuracy")
	flags.Float64("accuracy-max", 0.9, "Upper bound of per-bot answer accuracy")
	flags.Duration("think-min", time.Second, "Minimum think time before answering")
	flags.Duration("think-max", 4*time.Second, "Maximum think time before answering")
	flags.Int64("seed", 0, "Random seed for reproducible runs (0 = time-based)")

	// Roster flags
	flags.String("roster-path", "", "Path to CSV or JSON file with bot display names")
	flags.String("roster-type", "", "Type of roster file: 'csv' or 'json'")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log per-bot failures to stderr")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for trace export (empty disables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints usage information.
func displayHelp(cmd *cobra.Command) {
	_ = cmd.Help()
}
