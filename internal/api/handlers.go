package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/charliek/evergreen/internal/domain"
	"github.com/charliek/evergreen/internal/supervisor"
)

// Updater is the view of the update scheduler the handlers need
type Updater interface {
	Tool() domain.Tool
	Handle() *supervisor.Handle
	LastCheck() time.Time
	Updates() int
	Checking() bool
	TriggerCheck() bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	supervisor *supervisor.Supervisor
	updater    Updater
	packageID  string
	startedAt  time.Time
}

// NewHandlers creates new HTTP handlers
func NewHandlers(sup *supervisor.Supervisor, updater Updater, packageID string) *Handlers {
	return &Handlers{
		supervisor: sup,
		updater:    updater,
		packageID:  packageID,
		startedAt:  time.Now(),
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:        StatusRunning,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Tool:          h.packageID,
		LastCheck:     formatTime(h.updater.LastCheck()),
		Updates:       h.updater.Updates(),
		Checking:      h.updater.Checking(),
		ExitOnExit:    h.supervisor.ExitOnExit(),
		APIVersion:    "v1",
	}
	if h.supervisor.Context().Shutdown.Requested() {
		resp.Status = StatusShuttingDown
	}

	if tool := h.updater.Tool(); tool.PackageID != "" {
		resp.Tool = tool.PackageID
		if tool.Version != nil {
			resp.Version = tool.Version.Original()
		}
	}
	if handle := h.updater.Handle(); handle != nil {
		p := ToProcessResponse(handle.Info())
		resp.Process = &p
	}

	writeJSON(w, http.StatusOK, resp)
}

// Check handles POST /api/v1/check
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	if h.supervisor.Context().Shutdown.Requested() {
		writeError(w, domain.ErrShutdownInProgress)
		return
	}
	writeJSON(w, http.StatusAccepted, CheckResponse{Queued: h.updater.TriggerCheck()})
}

// Shutdown handles POST /api/v1/shutdown
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	if h.supervisor.Context().Shutdown.Requested() {
		writeError(w, domain.ErrShutdownInProgress)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	h.supervisor.Stop()
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("encoding JSON response")
	}
}

// writeError writes an error response. Unknown errors are logged and
// replaced with a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrorCode(err)
	message := "an internal error occurred"

	switch {
	case errors.Is(err, domain.ErrShutdownInProgress):
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, domain.ErrToolNotFound), errors.Is(err, domain.ErrToolNotInstalled):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrProcessNotRunning):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrRegistryUnavailable):
		status = http.StatusBadGateway
		message = err.Error()
	default:
		log.WithError(err).Error("internal error")
	}

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
