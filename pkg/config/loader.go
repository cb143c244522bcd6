package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".prescan"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for prescan settings.
const envPrefix = "PRESCAN"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// DotEnvFiles are loaded, when present, before the environment is read.
// Variables already set are never overridden.
var DotEnvFiles = []string{".env.local", ".env"}

// Loader layers defaults, the config file, environment and bound flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with defaults and PRESCAN_* environment lookup.
func NewLoader() *Loader {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// BindFlag makes a command-line flag override key when it is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not defined", key)
	}

	err := l.v.BindPFlag(key, flag)
	if err != nil {
		return fmt.Errorf("bind %s: %w", key, err)
	}

	return nil
}

// BindFlags binds every key to the flag of the same name in fs.
func (l *Loader) BindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		err := l.BindFlag(key, fs.Lookup(name))
		if err != nil {
			return err
		}
	}

	return nil
}

// Load reads the config file and returns the validated configuration.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, .prescan.yaml is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func (l *Loader) Load(configPath string) (*Config, error) {
	if configPath != "" {
		l.v.SetConfigFile(configPath)
	} else {
		l.v.SetConfigName(configName)
		l.v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			l.v.AddConfigPath(home)
		}
	}

	readErr := l.v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := l.v.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// ConfigFile returns the config file that was read, if any.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// LoadDotEnv loads the given dotenv files, skipping missing ones.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	return nil
}

// LoadConfig loads configuration from file, env vars, and defaults.
func LoadConfig(configPath string) (*Config, error) {
	return NewLoader().Load(configPath)
}
