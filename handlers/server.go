package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/atomic"

	"signalgate.app/receiver/internal/license"
	"signalgate.app/receiver/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Options struct {
	Licenses storage.LicenseStore
	Signals  storage.SignalStore

	// AllowedOrigins defaults to any origin.
	AllowedOrigins []string
	Version        string
	// Now defaults to time.Now and stamps newly created licenses.
	Now func() time.Time
}

type Server struct {
	Router   chi.Router
	Licenses storage.LicenseStore
	Signals  storage.SignalStore

	validator *license.Validator
	version   string
	now       func() time.Time

	accepted *atomic.Int64
	blocked  *atomic.Int64
}

func NewHttpServer(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		Router:    chi.NewRouter(),
		Licenses:  opts.Licenses,
		Signals:   opts.Signals,
		validator: license.NewValidator(opts.Licenses),
		version:   opts.Version,
		now:       opts.Now,
		accepted:  atomic.NewInt64(0),
		blocked:   atomic.NewInt64(0),
	}

	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.Home)
	r.Get("/health", s.Health)
	r.Post("/webhook", s.Webhook)
	r.Get("/dashboard", s.Dashboard)
	r.Get("/admin", s.Admin)
	r.Get("/admin/toggle/{licenseID}", s.ToggleLicense)
	r.Post("/admin/create", s.CreateLicense)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

type SignalCounts struct {
	Accepted int64 `json:"accepted"`
	Blocked  int64 `json:"blocked"`
}

type HealthResponse struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Timestamp time.Time    `json:"timestamp"`
	Signals   SignalCounts `json:"signals"`
}

// Health reports liveness and the signal counters since process start.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Timestamp: s.now().UTC(),
		Signals: SignalCounts{
			Accepted: s.accepted.Load(),
			Blocked:  s.blocked.Load(),
		},
	})
}
