package web

// errors.go renders errors for the three kinds of client: HTMX fragments,
// JSON API callers and plain browsers. The technical error is logged with
// the request ID; clients only see the mapped message and code.

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/labliq/internal/core"
	"github.com/JonMunkholm/labliq/internal/logging"
	"github.com/JonMunkholm/labliq/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// respondError maps err to its HTTP status and user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondErrorStatus(w, r, err, core.HTTPStatus(err))
}

func respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Log(r.Context(), logging.LevelForStatus(status), "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"mapped", core.IsUserFacing(err),
		"error", err.Error(),
	)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, r, status, ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code})
	default:
		http.Error(w, core.FormatUserError(err), status)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON is true for API routes and for clients that accept or send JSON.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// logWriteError records a failure after the response has started.
func (s *Server) logWriteError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn("response write failed", "path", r.URL.Path, "error", err)
}
