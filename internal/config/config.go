// Package config holds tool-level settings: where the default answer file,
// the options-format file, and the artifacts live, and how the apply tool is
// invoked. Values layer from built-in defaults, /etc/forge/setup.yaml (or a
// file in the working directory), FORGE_SETUP_* environment variables, and
// CLI flags.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the runtime configuration of one forge-setup invocation.
type Config struct {
	DefaultAnswerFile string   `mapstructure:"default_answer_file"`
	OptionsFormatFile string   `mapstructure:"options_format_file"`
	ResultFile        string   `mapstructure:"result_file"`
	SecretsFile       string   `mapstructure:"secrets_file"`
	LogDir            string   `mapstructure:"log_dir"`
	ServiceUser       string   `mapstructure:"service_user"`
	ApplyCommand      []string `mapstructure:"apply_command"`
	DangerousOptions  []string `mapstructure:"dangerous_options"`
	SecretOption      string   `mapstructure:"secret_option"`
	Debug             bool     `mapstructure:"debug"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("default_answer_file", "/usr/share/forge/default-answers.conf")
	viper.SetDefault("options_format_file", "/usr/share/forge/options-format.conf")
	viper.SetDefault("result_file", "/etc/forge/forge-setup.conf")
	viper.SetDefault("secrets_file", "/etc/forge/secure/db-password")
	viper.SetDefault("log_dir", "/var/log/forge")
	viper.SetDefault("service_user", "forge")
	viper.SetDefault("apply_command", []string{"forge-apply", "--verbose"})
	viper.SetDefault("dangerous_options", []string{"reset_data", "reset_cache"})
	viper.SetDefault("secret_option", "db_password")
	viper.SetDefault("debug", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
