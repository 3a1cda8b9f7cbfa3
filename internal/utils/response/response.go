// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every reply, success or failure, uses the same envelope:
//
//	{
//	  "success":   true,
//	  "message":   "Student found",
//	  "data":      { ... },
//	  "timestamp": "2026-03-01T10:00:00Z"
//	}
//
// Failures are translated in one place, Error, so every handler maps an
// error kind to the same status code and message.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aanand-mishra/student-records-api/internal/apperr"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteJSON writes data as JSON with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Error translates err into a failure envelope. Errors that are not an
// *apperr.Error are treated as internal; their detail goes to the log and
// never to the client.
func Error(w http.ResponseWriter, err error) {
	appErr := apperr.As(err)

	var data any
	switch appErr.Kind {
	case apperr.KindValidation:
		data = appErr.Fields
	case apperr.KindInternal:
		zap.L().Error("Unexpected error", zap.Error(err))
	}

	write(w, StatusFor(appErr.Kind), Envelope{
		Success:   false,
		Message:   appErr.Message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicateKey:
		return http.StatusConflict
	case apperr.KindValidation, apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, env Envelope) {
	if err := WriteJSON(w, status, env); err != nil {
		// Headers are already sent; all that is left is to note it.
		zap.L().Warn("Failed to write response", zap.Int("status", status), zap.Error(err))
	}
}
