package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
	cfgpkg "github.com/KaramelBytes/qstorm-cli/internal/config"
	"github.com/KaramelBytes/qstorm-cli/internal/errmap"
)

var (
	// Global flags
	cfgFile    string
	debug      bool
	flagOutput string
	// HTTP flags (override config if set)
	flagBaseURL          string
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "qstorm",
	Short: "Q-Storm CLI: upload sales data and analyze it on the Q-Storm platform",
	Long: `Q-Storm is a CLI for the Q-Storm analytics platform. Upload CSV or Excel files,
manage datasets within a session, and run time-series, Pareto and histogram analyses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", displayError(err))
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.qstorm/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "platform API base URL (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max attempts on 429/5xx and network errors (overrides config)")
}

func loadConfig() {
	if err := ensureConfig(); err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

// ensureConfig loads the configuration once and applies CLI overrides.
func ensureConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	f := rootCmd.PersistentFlags()
	if f.Changed("base-url") && flagBaseURL != "" {
		c.BaseURL = flagBaseURL
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		c.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("output") && flagOutput != "" {
		c.Output = flagOutput
	}
	if debug {
		c.LogLevel = "debug"
	}
	cfg = c
	return nil
}

// displayError turns platform and validation errors into the localized
// user message; anything else is shown as is.
func displayError(err error) string {
	locale := ""
	if cfg != nil {
		locale = cfg.Locale
	}
	m := errmap.New(locale)
	var unreachable *api.UnreachableError
	if errors.As(err, &unreachable) {
		return m.Generic() + " (" + unreachable.Error() + ")"
	}
	if _, ok := api.StatusOf(err); ok || errmap.Classify(err) == errmap.KindValidation {
		return m.FromError(err)
	}
	return err.Error()
}
