package domain

import "errors"

// Domain errors
var (
	ErrDotnetNotFound      = errors.New("dotnet not found")
	ErrToolNotFound        = errors.New("tool not found")
	ErrToolNotInstalled    = errors.New("tool not installed")
	ErrInstallFailed       = errors.New("install failed")
	ErrUpdateFailed        = errors.New("update failed")
	ErrRegistryUnavailable = errors.New("package registry unavailable")
	ErrProcessNotRunning   = errors.New("process not running")
	ErrShutdownInProgress  = errors.New("shutdown in progress")
	ErrConfigNotFound      = errors.New("config file not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeToolNotFound        = "TOOL_NOT_FOUND"
	ErrCodeProcessNotRunning   = "PROCESS_NOT_RUNNING"
	ErrCodeRegistryUnavailable = "REGISTRY_UNAVAILABLE"
	ErrCodeUpdateFailed        = "UPDATE_FAILED"
	ErrCodeShutdownInProgress  = "SHUTDOWN_IN_PROGRESS"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrToolNotFound), errors.Is(err, ErrToolNotInstalled):
		return ErrCodeToolNotFound
	case errors.Is(err, ErrProcessNotRunning):
		return ErrCodeProcessNotRunning
	case errors.Is(err, ErrRegistryUnavailable):
		return ErrCodeRegistryUnavailable
	case errors.Is(err, ErrUpdateFailed), errors.Is(err, ErrInstallFailed):
		return ErrCodeUpdateFailed
	case errors.Is(err, ErrShutdownInProgress):
		return ErrCodeShutdownInProgress
	default:
		return ErrCodeInternal
	}
}
