package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Store is the typed key/value view of configuration consumed by the core.
// Every accessor returns defaultValue when the key is absent.
type Store interface {
	GetString(key string, defaultValue string) string
	GetInt(key string, defaultValue int) int
	GetInt64(key string, defaultValue int64) int64
	GetBool(key string, defaultValue bool) bool
	GetFloat(key string, defaultValue float64) float64
}

// Config is a viper-backed Store. Precedence: flags > env > file > defaults.
type Config struct {
	v    *viper.Viper
	File string
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// flagBindings maps persistent CLI flags onto configuration keys.
var flagBindings = map[string]string{
	"log_level":        KeyLogLevel,
	"theme":            KeyTheme,
	"provider":         KeyProvider,
	"base_url":         KeyBaseURL,
	"model":            KeyModel,
	"stream":           KeyStream,
	"max_context_size": KeyMaxContextSize,
	"max_history":      KeyMaxHistory,
	"enable_cache":     KeyEnableCache,
}

// New returns a Config holding only the defaults.
func New() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{v: v}
}

// LoadConfigs initializes the configuration from file, flags, and environment variables.
func LoadConfigs(rootCmd *cobra.Command, cwd string) (*Config, error) {
	c := New()

	c.v.SetEnvPrefix("CODELVE")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()

	if cfgFile != "" {
		c.v.SetConfigFile(cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	} else {
		// Looks for codelve-config.{yaml,yml,json,toml} in the working directory
		c.v.SetConfigName("codelve-config")
		c.v.AddConfigPath(cwd)
		if err := c.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}
	c.File = c.v.ConfigFileUsed()

	if rootCmd != nil {
		bindFlags(c.v, rootCmd)
	}

	return c, nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(v *viper.Viper, rootCmd *cobra.Command) {
	for flag, key := range flagBindings {
		if f := rootCmd.PersistentFlags().Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Specifies the path to a configuration file (JSON, YAML or TOML) that contains all the settings for the application.")

	rootCmd.PersistentFlags().String("log_level", Defaults[KeyLogLevel].(string), "Log level: debug, info, warn or error.")
	rootCmd.PersistentFlags().String("theme", Defaults[KeyTheme].(string), "Set the highlighting theme for rendered answers (e.g., 'dracula', 'monokai', 'github').")
	rootCmd.PersistentFlags().String("provider", Defaults[KeyProvider].(string), "The inference backend to use ('ollama' or 'stub').")
	rootCmd.PersistentFlags().String("base_url", Defaults[KeyBaseURL].(string), "The base URL of the inference backend.")
	rootCmd.PersistentFlags().String("model", Defaults[KeyModel].(string), "The model name used for completions.")
	rootCmd.PersistentFlags().Bool("stream", Defaults[KeyStream].(bool), "Stream answers token by token.")
	rootCmd.PersistentFlags().Int("max_context_size", Defaults[KeyMaxContextSize].(int), "Context window budget in tokens (enforced as 4 characters per token).")
	rootCmd.PersistentFlags().Int("max_history", Defaults[KeyMaxHistory].(int), "Number of conversation turns kept in the context.")
	rootCmd.PersistentFlags().Bool("enable_cache", Defaults[KeyEnableCache].(bool), "Cache extracted symbols between scans.")
}

func (c *Config) GetString(key string, defaultValue string) string {
	if !c.v.IsSet(key) {
		return defaultValue
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string, defaultValue int) int {
	if !c.v.IsSet(key) {
		return defaultValue
	}
	return c.v.GetInt(key)
}

func (c *Config) GetInt64(key string, defaultValue int64) int64 {
	if !c.v.IsSet(key) {
		return defaultValue
	}
	return c.v.GetInt64(key)
}

func (c *Config) GetBool(key string, defaultValue bool) bool {
	if !c.v.IsSet(key) {
		return defaultValue
	}
	return c.v.GetBool(key)
}

func (c *Config) GetFloat(key string, defaultValue float64) float64 {
	if !c.v.IsSet(key) {
		return defaultValue
	}
	return c.v.GetFloat64(key)
}

// Set overrides a key for the lifetime of this Config.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Settings renders the effective scalar settings as sorted "key = value" lines.
// Prompt templates are omitted because they span several lines.
func (c *Config) Settings() []string {
	keys := c.v.AllKeys()
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, "prompts.") {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s = %v", key, c.v.Get(key)))
	}
	return lines
}

// ParseList splits a comma-separated setting, trimming whitespace and dropping
// empty items. With ensureDot every item gets a leading '.' (extension lists).
func ParseList(value string, ensureDot bool) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if ensureDot && !strings.HasPrefix(item, ".") {
			item = "." + item
		}
		items = append(items, item)
	}
	return items
}
