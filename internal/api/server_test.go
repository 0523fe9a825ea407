package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MikeSquared-Agency/chatlog/internal/logparse"
	"github.com/MikeSquared-Agency/chatlog/internal/observe"
	"github.com/MikeSquared-Agency/chatlog/internal/processor"
)

const sampleLog = "Jan 5 13:42 [user: bob] Unitex input: hello\n" +
	"Jan 5 13:42 [user: bob] ChatScript output: hi\n" +
	"Jan 5 13:43 [user: alice] Unitex input: what\n" +
	"Jan 5 13:43 [user: alice] Hey, sorry. What were we talking about?"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithToken(t, "")
}

func newTestServerWithToken(t *testing.T, token string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	proc := processor.New(logparse.DefaultConfig(), logger,
		processor.WithLocation(time.UTC),
		processor.WithClock(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }),
	)
	return NewServer(8760, token, proc, nil, logger)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/chatlog/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body struct {
		Agent        string   `json:"agent"`
		Status       string   `json:"status"`
		KnownModules []string `json:"known_modules"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Agent != "chatlog" {
		t.Errorf("expected agent chatlog, got %q", body.Agent)
	}
	if len(body.KnownModules) != 4 {
		t.Errorf("expected 4 known modules, got %v", body.KnownModules)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCreateReport_JSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/reports?year=2022", strings.NewReader(sampleLog))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		ReportID string `json:"report_id"`
		Report   []struct {
			User      string `json:"user"`
			Exchanges []struct {
				Question  string `json:"question"`
				Correct   bool   `json:"correct"`
				Timestamp string `json:"timestamp"`
			} `json:"exchanges"`
		} `json:"report"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ReportID == "" {
		t.Error("expected report_id")
	}
	if len(body.Report) != 2 || body.Report[0].User != "bob" || body.Report[1].User != "alice" {
		t.Fatalf("unexpected users: %+v", body.Report)
	}
	ex := body.Report[0].Exchanges[0]
	if ex.Question != "hello" || !ex.Correct || ex.Timestamp != "2022-01-05T13:42:00" {
		t.Errorf("unexpected exchange: %+v", ex)
	}
	if body.Report[1].Exchanges[0].Correct {
		t.Error("expected alice's fallback exchange to be incorrect")
	}
}

func TestCreateReport_CSV(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/reports?format=csv&noerrors=true", strings.NewReader(sampleLog))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	if w.Header().Get("X-Report-ID") == "" {
		t.Error("expected X-Report-ID header")
	}
	want := "User, ResponseModule, Question, Correct, Timestamp\r\n" +
		"bob, ChatScript, hello, true, 2024-01-05T13:42:00"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestCreateReport_BadParams(t *testing.T) {
	srv := newTestServer(t)

	for _, query := range []string{
		"format=xml",
		"year=abc",
		"year=0",
		"noerrors=maybe",
		"timegroup=fortnight",
	} {
		t.Run(query, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/reports?"+query, strings.NewReader(sampleLog))
			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestCreateReport_TimestampError(t *testing.T) {
	srv := newTestServer(t)

	body := "garbage [user: bob] Unitex input: hello"
	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestMetricsEndpointMountedWithMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	srv := NewServer(8760, "", processor.New(logparse.DefaultConfig(), logger), m, logger)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCreateReport_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t)
	srv.maxBody = int64(len(sampleLog))

	body := sampleLog + "\nJan 5 13:50 [user: zed] Unitex input: late\n"
	req := httptest.NewRequest("POST", "/api/v1/reports?format=csv", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "bob") {
		t.Error("expected no partial report in the response")
	}
}

func TestCreateReport_BodyAtLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.maxBody = int64(len(sampleLog))

	req := httptest.NewRequest("POST", "/api/v1/reports?format=csv", strings.NewReader(sampleLog))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateReport_BearerAuth(t *testing.T) {
	srv := newTestServerWithToken(t, "s3cr3t")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cr3t", http.StatusUnauthorized},
		{"valid token", "Bearer s3cr3t", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(sampleLog))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestHealthEndpointOpenWithToken(t *testing.T) {
	srv := newTestServerWithToken(t, "s3cr3t")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 without auth, got %d", w.Code)
	}
}
