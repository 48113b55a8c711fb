package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestRequestIDKeepsSafeCallerID(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = responses.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-01.abc:9")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if seen != "trace-01.abc:9" {
		t.Fatalf("expected caller id in context, got %q", seen)
	}
	if got := resp.Header().Get(requestIDHeader); got != seen {
		t.Fatalf("expected response header %q, got %q", seen, got)
	}
}

func TestRequestIDReplacesMissingOrUnsafeID(t *testing.T) {
	cases := map[string]string{
		"missing":   "",
		"too long":  strings.Repeat("a", maxRequestIDBytes+1),
		"newline":   "abc\r\nX-Injected: 1",
		"space":     "abc def",
		"non-ascii": "café",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			var seen string
			handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = responses.RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header[requestIDHeader] = []string{header}
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("expected generated uuid, got %q", seen)
			}
			if resp.Header().Get(requestIDHeader) != seen {
				t.Fatalf("response header does not match context id")
			}
		})
	}
}

func TestRequestIDReachesLogsAndErrorEnvelope(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})
	handler := RequestID(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, errors.New("connection reset"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set(requestIDHeader, "req-42")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var body responses.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if body.RequestID != "req-42" {
		t.Fatalf("expected request id in envelope, got %q", body.RequestID)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Fatalf("log line missing request id: %s", buf.String())
	}
}
