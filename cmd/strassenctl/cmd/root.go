// Package cmd implements the strassenctl commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbazzell/distributed-systems-project/internal/config"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

var (
	coordinatorURL string
	timeout        time.Duration
	debug          bool
)

var rootCmd = &cobra.Command{
	Use:   "strassenctl",
	Short: "Client for the distributed Strassen multiplication service",
	Long: `strassenctl submits matrix multiplications to a coordinator, waits for
the results and checks them against a local product.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("STRASSEN_COORDINATOR_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:5000"
	}

	rootCmd.PersistentFlags().StringVar(&coordinatorURL, "coordinator", defaultURL, "coordinator base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the command")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log HTTP retries to stderr")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetRootCmd returns the root command for tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func newClient() *transport.Client {
	opts := transport.Options{
		Timeout:      30 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
	if debug {
		opts.Logger = config.NewLogger(os.Stderr, slog.LevelDebug)
	}
	return transport.NewClient(coordinatorURL, opts)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
