package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/qstorm-cli/internal/utils"
)

// DirName is the per-user state directory under $HOME.
const DirName = ".qstorm"

// Global configuration structure.
type Global struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Locale selects the error message table (ja or en).
	Locale string `mapstructure:"locale" yaml:"locale"`
	Output string `mapstructure:"output" yaml:"output"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RateLimitRPS     float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`

	// Local state
	CredentialStore string `mapstructure:"credential_store" yaml:"credential_store"`
	CredentialPath  string `mapstructure:"credential_path" yaml:"credential_path"`
	WorkspacePath   string `mapstructure:"workspace_path" yaml:"workspace_path"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

// Dir returns ~/.qstorm.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

func defaultPath(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.qstorm/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := defaultPath(cfgFile)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("QSTORM")
	v.AutomaticEnv()

	v.SetDefault("base_url", "http://127.0.0.1:8000")
	v.SetDefault("locale", "ja")
	v.SetDefault("output", "text")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 300)
	v.SetDefault("retry_max_delay_ms", 3000)
	v.SetDefault("rate_limit_rps", 0.0)
	v.SetDefault("credential_store", "file")
	v.SetDefault("credential_path", "")
	v.SetDefault("workspace_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.CredentialStore = strings.ToLower(strings.TrimSpace(c.CredentialStore))
	if c.CredentialPath == "" {
		name := "credentials.yaml"
		if c.CredentialStore == "sqlite" {
			name = "credentials.db"
		}
		c.CredentialPath = filepath.Join(dir, name)
	}
	if c.WorkspacePath == "" {
		c.WorkspacePath = filepath.Join(dir, "workspace.yaml")
	}
	return &c, nil
}

// Validate checks enumerated settings.
func (c *Global) Validate() error {
	switch c.CredentialStore {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid credential_store: %q (use file or sqlite)", c.CredentialStore)
	}
	switch c.Output {
	case "text", "json":
	default:
		return fmt.Errorf("invalid output: %q (use text or json)", c.Output)
	}
	switch c.Locale {
	case "ja", "en":
	default:
		return fmt.Errorf("invalid locale: %q (use ja or en)", c.Locale)
	}
	return nil
}
