package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"signalgate.app/receiver/handlers"
	"signalgate.app/receiver/models"
	"signalgate.app/receiver/storage"
)

// FixedTime is the clock used by TestServer; licenses created through it
// carry Today as their creation date.
var FixedTime = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

const Today = "2026-10-18"

// TestStorage creates a memory storage seeded with one enabled and one
// disabled license.
func TestStorage() *storage.MemoryStorage {
	store := storage.NewMemoryStorage()
	store.Licenses = models.Licenses{
		"ACTIVE-1":   {Owner: "alice", Enabled: true, Created: "2026-01-01"},
		"DISABLED-1": {Owner: "bob", Enabled: false, Created: "2026-01-02"},
	}
	return store
}

// TestServer wires a server to store with a fixed clock.
func TestServer(store storage.Storage) *handlers.Server {
	return handlers.NewHttpServer(handlers.Options{
		Licenses: store,
		Signals:  store,
		Version:  "test",
		Now:      func() time.Time { return FixedTime },
	})
}

// PostWebhook sends body to /webhook through the full router.
func PostWebhook(t *testing.T, server http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

// PostCreateLicense submits the admin create form. A nil owner leaves the
// field out of the form entirely.
func PostCreateLicense(t *testing.T, server http.Handler, licenseID string, owner *string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{}
	form.Set("licenseID", licenseID)
	if owner != nil {
		form.Set("owner", *owner)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/create", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func Get(t *testing.T, server http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

// AssertWebhookResponse checks status code and the status/reason body.
func AssertWebhookResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode int, expectedStatus, expectedReason string) {
	t.Helper()

	if w.Code != expectedCode {
		t.Errorf("Expected status %d, got %d", expectedCode, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
	}

	var response handlers.WebhookResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode webhook response: %v", err)
	}

	if response.Status != expectedStatus {
		t.Errorf("Expected status '%s', got '%s'", expectedStatus, response.Status)
	}
	if response.Reason != expectedReason {
		t.Errorf("Expected reason '%s', got '%s'", expectedReason, response.Reason)
	}
}

// AssertRedirect checks for a 302 to location.
func AssertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()

	if w.Code != http.StatusFound {
		t.Errorf("Expected status %d, got %d", http.StatusFound, w.Code)
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Expected redirect to '%s', got '%s'", location, got)
	}
}

// MustLoadLicenses reads the whole license collection or fails the test.
func MustLoadLicenses(t *testing.T, store storage.LicenseStore) models.Licenses {
	t.Helper()

	licenses, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("Failed to load licenses: %v", err)
	}
	return licenses
}

// MustLoadSignal reads the latest signal or fails the test.
func MustLoadSignal(t *testing.T, store storage.SignalStore) models.Signal {
	t.Helper()

	signal, err := store.LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("Failed to load signal: %v", err)
	}
	return signal
}

func StrPtr(s string) *string {
	return &s
}
