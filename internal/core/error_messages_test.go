package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/store"
	"github.com/JonMunkholm/labliq/internal/upstream"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"wrapped not found", fmt.Errorf("load analysis x: %w", store.ErrNotFound), "ANL001"},
		{"limiter full", ErrTooManyAnalyses, "ANL002"},
		{"invalid request", fmt.Errorf("%w: fileId is required", ErrInvalidRequest), "REQ001"},
		{"invalid json", fmt.Errorf("%w: unexpected EOF", ErrInvalidJSON), "REQ003"},
		{"no data", fmt.Errorf("export: %w", results.ErrNoData), "EXP001"},
		{"engine 4xx", &upstream.EngineError{Status: 422, Message: "bad column"}, "ENG001"},
		{"engine 5xx", fmt.Errorf("run analysis: %w", &upstream.EngineError{Status: 502, Message: "down"}), "ENG002"},
		{"engine payload error", &upstream.EngineError{Message: "no rows"}, "ENG002"},
		{"engine unreachable", errors.New("rate engine request failed: dial tcp: connection refused"), "ENG002"},
		{"engine garbage", errors.New("decode rate engine response: unexpected EOF"), "ENG003"},
		{"engine response too large", fmt.Errorf("run analysis: %w: more than 10 bytes", upstream.ErrResponseTooLarge), "ENG004"},
		{"unknown sort key text", errors.New(`unknown sort key "foo"`), "REQ002"},
		{"unknown sort key sentinel", fmt.Errorf("%w: %w", ErrInvalidRequest, results.ErrUnknownSortKey), "REQ002"},
		{"deadline before timeout", errors.New("get analysis: context deadline exceeded"), "REQ011"},
		{"database refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB001"},
		{"case insensitive", errors.New("DEADLOCK detected"), "DB003"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_AllMessagesHaveAction(t *testing.T) {
	for _, ep := range errorPatterns {
		if ep.msg.Message == "" || ep.msg.Action == "" || ep.msg.Code == "" {
			t.Errorf("pattern %q has an incomplete message: %+v", ep.pattern, ep.msg)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{store.ErrNotFound, http.StatusNotFound},
		{ErrTooManyAnalyses, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: bad", ErrInvalidRequest), http.StatusBadRequest},
		{results.ErrUnknownSortKey, http.StatusBadRequest},
		{results.ErrNoData, http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{&upstream.EngineError{Status: 400}, http.StatusBadGateway},
		{fmt.Errorf("x: %w", upstream.ErrResponseTooLarge), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q", got)
	}
	want := "No data to export (Code: EXP001). Clear or widen the filters and export again"
	if got := FormatUserError(results.ErrNoData); got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(store.ErrNotFound) {
		t.Error("not found should be user facing")
	}
	if IsUserFacing(errors.New("segfault")) {
		t.Error("unknown error should not be user facing")
	}
}
