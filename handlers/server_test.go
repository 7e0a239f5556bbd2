package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"signalgate.app/receiver/handlers"
	"signalgate.app/receiver/internal/logger"
	"signalgate.app/receiver/internal/testutil"
	"signalgate.app/receiver/models"
	"signalgate.app/receiver/storage"
)

var errTest = errors.New("storage unavailable")

func parse(body string) (models.Signal, error) {
	return models.ParseSignal([]byte(body))
}

func newRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, strings.NewReader(body))
}

func serve(server http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) handlers.HealthResponse {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var health handlers.HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	return health
}

func TestNewHttpServer(t *testing.T) {
	store := storage.NewMemoryStorage()
	server := handlers.NewHttpServer(handlers.Options{Licenses: store, Signals: store})

	if server == nil {
		t.Fatalf("Expected server to be created, got nil")
	}
	if server.Router == nil {
		t.Errorf("Expected router to be initialized")
	}
	if server.Licenses == nil || server.Signals == nil {
		t.Errorf("Expected stores to be assigned")
	}
}

func TestServer_HomeRedirectsToDashboard(t *testing.T) {
	server := testutil.TestServer(testutil.TestStorage())

	w := testutil.Get(t, server, "/")

	testutil.AssertRedirect(t, w, "/dashboard")
}

func TestServer_HealthEndpoint(t *testing.T) {
	server := testutil.TestServer(testutil.TestStorage())

	w := testutil.Get(t, server, "/health")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}
	health := decodeHealth(t, w)
	if health.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("Expected version 'test', got '%s'", health.Version)
	}
	if !health.Timestamp.Equal(testutil.FixedTime) {
		t.Errorf("Expected timestamp %v, got %v", testutil.FixedTime, health.Timestamp)
	}
	if health.Signals.Accepted != 0 || health.Signals.Blocked != 0 {
		t.Errorf("Expected zero counters, got %+v", health.Signals)
	}
}

func TestServer_DefaultVersion(t *testing.T) {
	store := storage.NewMemoryStorage()
	server := handlers.NewHttpServer(handlers.Options{Licenses: store, Signals: store})

	health := decodeHealth(t, testutil.Get(t, server, "/health"))
	if health.Version != "dev" {
		t.Errorf("Expected version 'dev', got '%s'", health.Version)
	}
}

func TestServer_RoutingConfiguration(t *testing.T) {
	server := testutil.TestServer(testutil.TestStorage())

	tests := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{http.MethodGet, "/", http.StatusFound},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/dashboard", http.StatusOK},
		{http.MethodGet, "/admin", http.StatusOK},
		{http.MethodGet, "/admin/toggle/ACTIVE-1", http.StatusFound},
		{http.MethodPost, "/admin/create", http.StatusFound},
		{http.MethodPost, "/dashboard", http.StatusMethodNotAllowed},
		{http.MethodGet, "/admin/create", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nonexistent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(server, newRequest(tt.method, tt.path, ""))
			if w.Code != tt.expectedCode {
				t.Errorf("Expected status %d, got %d", tt.expectedCode, w.Code)
			}
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	store := storage.NewMemoryStorage()
	server := handlers.NewHttpServer(handlers.Options{
		Licenses:       store,
		Signals:        store,
		AllowedOrigins: []string{"https://charts.example"},
	})

	req := newRequest(http.MethodOptions, "/webhook", "")
	req.Header.Set("Origin", "https://charts.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(server, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://charts.example" {
		t.Errorf("Expected allowed origin header, got '%s'", got)
	}

	req = newRequest(http.MethodOptions, "/webhook", "")
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = serve(server, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allowed origin for unknown origin, got '%s'", got)
	}
}

func TestDashboard_Empty(t *testing.T) {
	server := testutil.TestServer(testutil.TestStorage())

	w := testutil.Get(t, server, "/dashboard")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got '%s'", ct)
	}
	if !strings.Contains(w.Body.String(), "No signal received yet.") {
		t.Errorf("Expected empty notice, got %s", w.Body.String())
	}
}

func TestDashboard_ShowsLatestSignal(t *testing.T) {
	store := testutil.TestStorage()
	server := testutil.TestServer(store)

	testutil.PostWebhook(t, server, `{"licenseID":"ACTIVE-1","ticker":"BTCUSD","note":"<script>alert(1)</script>"}`)

	w := testutil.Get(t, server, "/dashboard")
	body := w.Body.String()

	if strings.Contains(body, "No signal received yet.") {
		t.Error("Expected signal to be shown, got empty notice")
	}
	for _, fragment := range []string{"<td>ticker</td>", "<td>BTCUSD</td>", "Raw payload"} {
		if !strings.Contains(body, fragment) {
			t.Errorf("Expected dashboard to contain %q", fragment)
		}
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("Expected payload values to be HTML escaped")
	}
	if strings.Index(body, "<td>licenseID</td>") > strings.Index(body, "<td>ticker</td>") {
		t.Error("Expected fields in payload order")
	}
}

func TestDashboard_NonObjectSignal(t *testing.T) {
	store := testutil.TestStorage()
	store.Signal, _ = parse(`[1,2,3]`)
	server := testutil.TestServer(store)

	w := testutil.Get(t, server, "/dashboard")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "Raw payload") {
		t.Errorf("Expected raw payload section, got %s", w.Body.String())
	}
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f failingWriter) Write(b []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestDashboard_WriteFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	server := testutil.TestServer(testutil.TestStorage())
	server.ServeHTTP(failingWriter{httptest.NewRecorder()}, newRequest(http.MethodGet, "/dashboard", ""))

	output := buf.String()
	if !strings.Contains(output, "failed to write page") {
		t.Errorf("Expected write failure to be logged, got %q", output)
	}
	if !strings.Contains(output, "connection reset") {
		t.Errorf("Expected underlying error in log, got %q", output)
	}
}

func TestPages_StorageFailure(t *testing.T) {
	store := &brokenStore{MemoryStorage: testutil.TestStorage(), loadErr: errTest}
	server := testutil.TestServer(store)

	for _, path := range []string{"/dashboard", "/admin", "/admin/toggle/ACTIVE-1"} {
		t.Run(path, func(t *testing.T) {
			w := testutil.Get(t, server, path)
			if w.Code != http.StatusInternalServerError {
				t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
			}
		})
	}

	w := testutil.PostCreateLicense(t, server, "NEW", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected create to fail with %d, got %d", http.StatusInternalServerError, w.Code)
	}
}
