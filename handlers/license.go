package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"signalgate.app/receiver/internal/logger"
	"signalgate.app/receiver/models"
)

type dashboardView struct {
	Empty  bool
	Fields []models.Field
	Raw    string
}

type licenseRow struct {
	ID string
	models.License
	ToggleURL string
}

type adminView struct {
	Licenses []licenseRow
}

func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	signal, err := s.Signals.LoadLatest(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	fields, err := signal.Fields()
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	s.render(w, r, "dashboard.html", dashboardView{
		Empty:  signal.IsEmpty(),
		Fields: fields,
		Raw:    signal.Pretty(),
	})
}

func (s *Server) Admin(w http.ResponseWriter, r *http.Request) {
	licenses, err := s.Licenses.LoadAll(r.Context())
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	view := adminView{Licenses: make([]licenseRow, 0, len(licenses))}
	for _, id := range licenses.IDs() {
		view.Licenses = append(view.Licenses, licenseRow{
			ID:        id,
			License:   licenses[id],
			ToggleURL: "/admin/toggle/" + url.PathEscape(id),
		})
	}

	s.render(w, r, "admin.html", view)
}

// ToggleLicense flips the enabled flag of an existing license. Unknown
// identifiers are ignored; the caller is redirected to the admin page either way.
func (s *Server) ToggleLicense(w http.ResponseWriter, r *http.Request) {
	// chi matches against RawPath when it is set, so the segment is only
	// still escaped in that case.
	licenseID := chi.URLParam(r, "licenseID")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(licenseID); err == nil {
			licenseID = unescaped
		}
	}

	var toggled bool
	err := s.Licenses.UpdateLicenses(r.Context(), func(licenses models.Licenses) bool {
		toggled = licenses.Toggle(licenseID)
		return toggled
	})
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	if toggled {
		logger.Info("license toggled", map[string]interface{}{"licenseID": licenseID})
	}
	http.Redirect(w, r, "/admin", http.StatusFound)
}

// CreateLicense stores an enabled license stamped with today's UTC date. An
// existing record under the same identifier is replaced. An empty licenseID
// is ignored.
func (s *Server) CreateLicense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Warn("failed to parse license form", map[string]interface{}{"error": err.Error()})
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}

	licenseID := r.PostForm.Get("licenseID")
	if licenseID == "" {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}

	// an owner field that is present but blank is kept blank
	owner := models.DefaultOwner
	if values, ok := r.PostForm["owner"]; ok && len(values) > 0 {
		owner = values[0]
	}

	record := models.NewLicense(owner, s.now())
	err := s.Licenses.UpdateLicenses(r.Context(), func(licenses models.Licenses) bool {
		licenses[licenseID] = record
		return true
	})
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	logger.Info("license created", map[string]interface{}{"licenseID": licenseID, "owner": owner})
	http.Redirect(w, r, "/admin", http.StatusFound)
}
