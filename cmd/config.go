package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/qstorm-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Q-Storm configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "base_url: %s\n", cfg.BaseURL)
		fmt.Fprintf(w, "locale: %s\n", cfg.Locale)
		fmt.Fprintf(w, "output: %s\n", cfg.Output)
		fmt.Fprintf(w, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(w, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(w, "retry_base_delay_ms: %d\n", cfg.RetryBaseDelayMs)
		fmt.Fprintf(w, "retry_max_delay_ms: %d\n", cfg.RetryMaxDelayMs)
		if cfg.RateLimitRPS > 0 {
			fmt.Fprintf(w, "rate_limit_rps: %.2f\n", cfg.RateLimitRPS)
		}
		fmt.Fprintf(w, "credential_store: %s\n", cfg.CredentialStore)
		fmt.Fprintf(w, "credential_path: %s\n", cfg.CredentialPath)
		fmt.Fprintf(w, "workspace_path: %s\n", cfg.WorkspacePath)
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		if cfg.LogFile != "" {
			fmt.Fprintf(w, "log_file: %s\n", cfg.LogFile)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// start from the file, not from flag overrides
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		switch key {
		case "base_url":
			c.BaseURL = strings.TrimRight(val, "/")
		case "locale":
			c.Locale = strings.ToLower(val)
		case "output":
			c.Output = strings.ToLower(val)
		case "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid positive int for %s: %v", key, val)
			}
			switch key {
			case "http_timeout_sec":
				c.HTTPTimeoutSec = i
			case "retry_max_attempts":
				c.RetryMaxAttempts = i
			case "retry_base_delay_ms":
				c.RetryBaseDelayMs = i
			default:
				c.RetryMaxDelayMs = i
			}
		case "rate_limit_rps":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid float for rate_limit_rps: %v", val)
			}
			c.RateLimitRPS = f
		case "credential_store":
			c.CredentialStore = strings.ToLower(val)
			// the default path follows the store kind
			c.CredentialPath = ""
		case "credential_path":
			c.CredentialPath = val
		case "workspace_path":
			c.WorkspacePath = val
		case "log_level":
			c.LogLevel = strings.ToLower(val)
		case "log_file":
			c.LogFile = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = nil
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
