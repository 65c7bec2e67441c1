// Package respond writes the bridge's JSON responses. Error bodies carry
// a short public message only; causes are logged with secrets masked.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON marshals v before touching w, so an unencodable value becomes a
// 500 instead of a truncated body behind a success status.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		w.WriteHeader(code)
		return
	}

	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("response encoding failed",
			slog.Int("status_code", code),
			slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}` + "\n"))
		return
	}

	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

// AppError pairs the status and message a caller sees with the cause
// that only goes to the log.
type AppError struct {
	Code    int
	UserMsg string
	Err     error
}

// NewAppError returns an AppError. err may be nil.
func NewAppError(code int, userMsg string, err error) *AppError {
	return &AppError{Code: code, UserMsg: userMsg, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.UserMsg
	}
	return e.UserMsg + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// Error writes err as an ErrorBody. An *AppError in the chain supplies the
// status and message; other errors get code and its status text. Server
// errors are logged.
func Error(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	msg := http.StatusText(code)
	cause := err
	var appErr *AppError
	if errors.As(err, &appErr) {
		code, msg, cause = appErr.Code, appErr.UserMsg, appErr.Err
	}

	if code >= http.StatusInternalServerError && cause != nil {
		slog.Error("request failed",
			slog.Int("status_code", code),
			slog.String("error", SanitizeError(cause)))
	}
	JSON(w, code, ErrorBody{Error: msg})
}
