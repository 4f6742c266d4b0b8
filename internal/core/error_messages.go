package core

// error_messages.go maps technical errors to user-facing messages.
//
// Each message carries a short code that users can quote to support. Known
// sentinel and typed errors are matched first with errors.Is / errors.As;
// anything else falls through to case-insensitive substring patterns on the
// error text.
//
// # Analysis Errors (ANL001-ANL099)
//
//	ANL001 - Analysis not found
//	         Action: Check the link or pick the analysis from history
//	         Matches: store.ErrNotFound
//
//	ANL002 - System busy: too many analyses running
//	         Action: Please wait a moment and try again
//	         Matches: ErrTooManyAnalyses, "too many analyses"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request: a field is missing or out of range
//	         Action: Check the column mapping and rate settings
//	         Matches: ErrInvalidRequest
//
//	REQ002 - Unknown sort column
//	         Matches: results.ErrUnknownSortKey, "unknown sort key"
//
//	REQ003 - Malformed JSON body
//	         Matches: ErrInvalidJSON, "invalid json"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - No data to export: the current filters match no rows
//	         Action: Clear or widen the filters and export again
//	         Matches: results.ErrNoData
//
// # Rate Engine Errors (ENG001-ENG099)
//
//	ENG001 - The rate engine rejected the analysis
//	         Matches: *upstream.EngineError with a 4xx status
//
//	ENG002 - The rate engine failed or is unavailable
//	         Matches: other *upstream.EngineError, "rate engine request failed"
//
//	ENG003 - The rate engine returned an unreadable response
//	         Matches: "decode rate engine"
//
//	ENG004 - The rate engine response exceeded the size cap
//	         Matches: upstream.ErrResponseTooLarge
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Deadlock
//	DB004 - Operation timed out ("timeout")
//
// # Request Lifecycle (REQ010-REQ011)
//
//	REQ010 - Request cancelled ("context canceled")
//	REQ011 - Request timed out ("context deadline exceeded")
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests ("rate limit")
//
// # Default (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error,
// which is logged with the request ID.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/store"
	"github.com/JonMunkholm/labliq/internal/upstream"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNotFound = UserMessage{
		Message: "Analysis not found",
		Action:  "Check the link or pick the analysis from history",
		Code:    "ANL001",
	}
	msgBusy = UserMessage{
		Message: "Too many analyses are running",
		Action:  "Please wait a moment and try again",
		Code:    "ANL002",
	}
	msgInvalid = UserMessage{
		Message: "The request is missing a field or has an invalid value",
		Action:  "Check the column mapping and rate settings",
		Code:    "REQ001",
	}
	msgUnknownSort = UserMessage{
		Message: "Unknown sort column",
		Action:  "Sort by one of the table's columns",
		Code:    "REQ002",
	}
	msgInvalidJSON = UserMessage{
		Message: "The request body is not valid JSON",
		Action:  "Check the request format",
		Code:    "REQ003",
	}
	msgNoData = UserMessage{
		Message: "No data to export",
		Action:  "Clear or widen the filters and export again",
		Code:    "EXP001",
	}
	msgEngineRejected = UserMessage{
		Message: "The rate engine rejected the analysis",
		Action:  "Check that the file and column mapping are correct",
		Code:    "ENG001",
	}
	msgEngineFailed = UserMessage{
		Message: "The rate engine is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "ENG002",
	}
	msgEngineTooLarge = UserMessage{
		Message: "The rate engine response is too large",
		Action:  "Split the file into smaller uploads",
		Code:    "ENG004",
	}
)

// errorPattern maps a case-insensitive substring of the error text to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are tried in order; the first match wins, so specific
// patterns come before general ones.
var errorPatterns = []errorPattern{
	{"too many analyses", msgBusy},
	{"unknown sort key", msgUnknownSort},
	{"invalid json", msgInvalidJSON},
	{"no data to export", msgNoData},

	{"decode rate engine", UserMessage{
		Message: "The rate engine returned an unreadable response",
		Action:  "Please try again or contact support",
		Code:    "ENG003",
	}},
	{"rate engine request failed", msgEngineFailed},

	// Checked before the generic "timeout" pattern.
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ010",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ011",
	}},

	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB003",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB004",
	}},

	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrTooManyAnalyses):
		return msgBusy
	case errors.Is(err, results.ErrUnknownSortKey):
		return msgUnknownSort
	case errors.Is(err, ErrInvalidJSON):
		return msgInvalidJSON
	case errors.Is(err, ErrInvalidRequest):
		return msgInvalid
	case errors.Is(err, results.ErrNoData):
		return msgNoData
	case errors.Is(err, upstream.ErrResponseTooLarge):
		return msgEngineTooLarge
	}

	var engErr *upstream.EngineError
	if errors.As(err, &engErr) {
		if engErr.Status >= 400 && engErr.Status < 500 {
			return msgEngineRejected
		}
		return msgEngineFailed
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	var engErr *upstream.EngineError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyAnalyses):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, results.ErrUnknownSortKey):
		return http.StatusBadRequest
	case errors.Is(err, results.ErrNoData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &engErr), errors.Is(err, upstream.ErrResponseTooLarge):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
