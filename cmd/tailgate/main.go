package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/horockey/tailgate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tailgate",
	Short: "Serve Traefik dynamic configuration derived from a tailnet",
	Long: `Tailgate polls the tailscaled LocalAPI, matches device tags against
a rule file and serves the resulting Traefik dynamic configuration
over HTTP (and optionally as an atomically written file).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rulesPath, _ := cmd.Flags().GetString("rules")
		socket, _ := cmd.Flags().GetString("socket")
		addr, _ := cmd.Flags().GetString("addr")
		apiKey, _ := cmd.Flags().GetString("api-key")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		debounce, _ := cmd.Flags().GetDuration("debounce")
		fetchTimeout, _ := cmd.Flags().GetDuration("fetch-timeout")
		maxBackoff, _ := cmd.Flags().GetDuration("max-backoff")
		filePath, _ := cmd.Flags().GetString("file")
		badgerDir, _ := cmd.Flags().GetString("badger-dir")
		metricsOn, _ := cmd.Flags().GetBool("metrics")
		logLevel, _ := cmd.Flags().GetString("log-level")

		lvl, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("parsing log level: %w", err)
		}
		logger := zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "tailgate").
			Logger().
			Level(lvl)

		rs, err := tailgate.LoadRules(rulesPath)
		if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}

		opts := []options.Option[tailgate.CreateProviderParams]{
			tailgate.WithSocketPath(socket),
			tailgate.WithHTTPAddr(addr),
			tailgate.WithPollInterval(pollInterval),
			tailgate.WithDebounceWindow(debounce),
			tailgate.WithFetchTimeout(fetchTimeout),
			tailgate.WithMaxBackoff(maxBackoff),
			tailgate.WithLogger(logger),
		}
		if apiKey != "" {
			opts = append(opts, tailgate.WithAPIKey(apiKey))
		}
		if filePath != "" {
			opts = append(opts, tailgate.WithFileDelivery(filePath))
		}
		if badgerDir != "" {
			opts = append(opts, tailgate.WithBadgerDir(badgerDir))
		}
		if metricsOn {
			opts = append(opts, tailgate.WithMetricsRegistry(prometheus.NewRegistry()))
		}

		provider, err := tailgate.New(rs, opts...)
		if err != nil {
			return fmt.Errorf("creating provider: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := provider.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("running provider: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringP("rules", "r", "rules.yml", "Path to the YAML rule file")
	rootCmd.Flags().String("socket", "/var/run/tailscale/tailscaled.sock", "LocalAPI endpoint (unix socket path or tcp://host:port:token)")
	rootCmd.Flags().String("addr", "0.0.0.0:8080", "HTTP listen address")
	rootCmd.Flags().String("api-key", "", "Require this X-Api-Key on config endpoints")
	rootCmd.Flags().Duration("poll-interval", 30*time.Second, "Tailnet poll interval")
	rootCmd.Flags().Duration("debounce", 5*time.Second, "Minimal spacing between published versions")
	rootCmd.Flags().Duration("fetch-timeout", 5*time.Second, "LocalAPI request timeout")
	rootCmd.Flags().Duration("max-backoff", 5*time.Minute, "Upper bound for the failure backoff")
	rootCmd.Flags().StringP("file", "f", "", "Also write the configuration to this file")
	rootCmd.Flags().String("badger-dir", "", "Persist the published state to badger under this dir")
	rootCmd.Flags().Bool("metrics", false, "Expose prometheus metrics on /metrics")
	rootCmd.Flags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
