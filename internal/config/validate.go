package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/charliek/evergreen/internal/constants"
	"github.com/charliek/evergreen/internal/domain"
	log "github.com/sirupsen/logrus"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors
func Validate(config *Config) error {
	var errs []string

	if config.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("interval: must be positive, got %s", config.Interval))
	}

	if config.StopTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("stop_timeout: must be positive, got %s", config.StopTimeout))
	}

	if u, err := url.Parse(config.Source); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("source: must be an absolute URL, got %q", config.Source))
	}

	if config.StopCommand != constants.SignalStopCommand && !strings.Contains(config.StopCommand, "{pid}") {
		errs = append(errs, fmt.Sprintf("stop_command: must reference {pid} or be %q", constants.SignalStopCommand))
	}

	if config.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(config.StatusAddr); err != nil {
			errs = append(errs, fmt.Sprintf("status_addr: %v", err))
		}
	}

	if _, err := log.ParseLevel(config.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidateToolID checks if a package id is usable on a dotnet command line
func ValidateToolID(id string) error {
	if id == "" {
		return &ValidationError{Field: "tool", Message: "package id cannot be empty"}
	}
	if strings.HasPrefix(id, "-") {
		return &ValidationError{Field: "tool", Message: "package id cannot start with '-'"}
	}
	if strings.ContainsAny(id, " \t\n/\\") {
		return &ValidationError{Field: "tool", Message: "package id cannot contain whitespace or path separators"}
	}
	return nil
}
