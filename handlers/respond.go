package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signalgate.app/receiver/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// reportError logs err and hands it to the request's Sentry hub, if any.
func reportError(r *http.Request, err error) {
	logger.Error("request failed", map[string]interface{}{
		"error":      err.Error(),
		"method":     r.Method,
		"route":      routePattern(r),
		"request_id": middleware.GetReqID(r.Context()),
	})
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		reportError(r, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Error("failed to write page", map[string]interface{}{
			"error": err.Error(),
			"route": routePattern(r),
		})
	}
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	reportError(r, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// requestLogger logs one line per request. It records the route pattern, not
// the path, so license identifiers in toggle URLs stay out of the logs.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("request", map[string]interface{}{
			"method":      r.Method,
			"route":       routePattern(r),
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}
