package api

import (
	"time"

	"github.com/charliek/evergreen/internal/domain"
)

// Overall states reported by GET /status
const (
	StatusRunning      = "running"
	StatusShuttingDown = "shutting_down"
)

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Tool          string           `json:"tool"`
	Version       string           `json:"version,omitempty"`
	Process       *ProcessResponse `json:"process,omitempty"`
	LastCheck     string           `json:"last_check,omitempty"`
	Updates       int              `json:"updates"`
	Checking      bool             `json:"checking"`
	ExitOnExit    bool             `json:"exit_on_exit"`
	APIVersion    string           `json:"api_version"`
}

// ProcessResponse represents the current launch
type ProcessResponse struct {
	Command       string   `json:"command"`
	Args          []string `json:"args,omitempty"`
	Status        string   `json:"status"`
	PID           int      `json:"pid"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	ExitCode      *int     `json:"exit_code,omitempty"`
}

// CheckResponse represents the response for POST /check. Queued is false
// when a check was already pending.
type CheckResponse struct {
	Queued bool `json:"queued"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToProcessResponse converts domain.ProcessInfo to ProcessResponse
func ToProcessResponse(info domain.ProcessInfo) ProcessResponse {
	return ProcessResponse{
		Command:       info.Command,
		Args:          info.Args,
		Status:        string(info.State),
		PID:           info.PID,
		UptimeSeconds: info.UptimeSeconds(),
		ExitCode:      info.ExitCode,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
