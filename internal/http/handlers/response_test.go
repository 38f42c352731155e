package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// serveFail routes GET /x to fail with the given status and message, with a
// request id and a capturing request-scoped logger in place.
func serveFail(t *testing.T, status int, code, msg string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	lg := zerolog.New(&buf)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-fail")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/x", func(c *gin.Context) { fail(c, status, code, msg) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w, buf.String()
}

func TestFail_Envelope(t *testing.T) {
	w, logs := serveFail(t, http.StatusConflict, ErrCodeAutomationInactive, "automation is not active")
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("json: %v", err)
	}
	if e.RequestID != "rid-fail" || e.Code != ErrCodeAutomationInactive || e.Message != "automation is not active" {
		t.Fatalf("unexpected body: %+v", e)
	}
	if logs != "" {
		t.Fatalf("4xx must not be logged here, got %s", logs)
	}
}

func TestFail_UpstreamIsLoggedAndScrubbed(t *testing.T) {
	w, logs := serveFail(t, http.StatusBadGateway, ErrCodeRunFailed, "mailbox owner@example.com rejected the call")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(w.Body.String(), "owner@example.com") || strings.Contains(logs, "owner@example.com") {
		t.Fatalf("address leaked: body=%s logs=%s", w.Body.String(), logs)
	}
	for _, want := range []string{`"level":"error"`, `"code":"run_failed"`, `"route":"/x"`, `"status":502`} {
		if !strings.Contains(logs, want) {
			t.Fatalf("log %s missing %s", logs, want)
		}
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/list", func(c *gin.Context) {
		ok(c, http.StatusOK, ListIntegrationsResponse{})
	})
	r.DELETE("/gone", noContent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/list", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("ok: %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/gone", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: %d %q", w.Code, w.Body.String())
	}
}
