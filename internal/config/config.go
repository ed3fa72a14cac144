package config

import (
	"fmt"
	"os"
	"time"

	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config represents the evergreen configuration, read from .evergreen.yaml
// and then overlaid with explicitly set command line flags.
type Config struct {
	Source      string
	Interval    time.Duration
	Singleton   bool
	Quiet       bool
	ExitOnExit  bool
	Force       bool
	Prerelease  bool
	StopTimeout time.Duration
	StopCommand string
	EnvFile     string
	Env         map[string]string
	StatusAddr  string
	LogLevel    string
	LogFile     string

	// Dir is the directory of the loaded file, used to resolve relative paths
	Dir string
}

// rawConfig is the on-disk shape. Exit is a pointer so that an absent key
// keeps the default of true.
type rawConfig struct {
	Source      string            `yaml:"source"`
	Interval    int               `yaml:"interval"`
	Singleton   bool              `yaml:"singleton"`
	Quiet       bool              `yaml:"quiet"`
	Exit        *bool             `yaml:"exit,omitempty"`
	Force       bool              `yaml:"force"`
	Prerelease  bool              `yaml:"prerelease"`
	StopTimeout string            `yaml:"stop_timeout"`
	StopCommand string            `yaml:"stop_command"`
	EnvFile     string            `yaml:"env_file"`
	Env         map[string]string `yaml:"env"`
	StatusAddr  string            `yaml:"status_addr"`
	LogLevel    string            `yaml:"log_level"`
	LogFile     string            `yaml:"log_file"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Source:      constants.DefaultPackageFeed,
		Interval:    constants.DefaultInterval,
		ExitOnExit:  true,
		StopTimeout: constants.DefaultStopTimeout,
		StopCommand: constants.DefaultStopCommand,
		LogLevel:    constants.DefaultLogLevel,
	}
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	// Check file permissions for security
	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	config := Default()
	if raw.Source != "" {
		config.Source = raw.Source
	}
	if raw.Interval != 0 {
		config.Interval = time.Duration(raw.Interval) * time.Second
	}
	if raw.Exit != nil {
		config.ExitOnExit = *raw.Exit
	}
	if raw.StopTimeout != "" {
		d, err := time.ParseDuration(raw.StopTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: stop_timeout: %v", domain.ErrInvalidConfig, err)
		}
		config.StopTimeout = d
	}
	if raw.LogLevel != "" {
		config.LogLevel = raw.LogLevel
	}
	if raw.StopCommand != "" {
		}

	config.Singleton = raw.Singleton
	config.Quiet = raw.Quiet
	config.Force = raw.Force
	config.Prerelease = raw.Prerelease
	config.StopCommand = raw.StopCommand
	config.EnvFile = raw.EnvFile
	config.Env = raw.Env
	config.StatusAddr = raw.StatusAddr
	config.LogFile = raw.LogFile

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Resolve loads the config at path, or the first file found by FindConfigFile
// when path is empty. A missing file is not an error: defaults are returned.
func Resolve(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		found, err := FindConfigFile()
		if err != nil {
			return Default(), nil
		}
		path = found
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = configDir(path)
	return cfg, nil
}
