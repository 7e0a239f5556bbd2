package handlers

import (
	"errors"
	"io"
	"net/http"

	"signalgate.app/receiver/internal/logger"
	"signalgate.app/receiver/models"
)

const (
	MaxWebhookBytes = int64(65536)

	StatusReceived = "received"
	StatusBlocked  = "blocked"
	StatusError    = "error"

	ReasonNoJSON         = "No JSON"
	ReasonTooLarge       = "Payload too large"
	ReasonInvalidLicense = "Invalid or disabled license"
)

type WebhookResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Webhook stores the posted JSON document as the latest signal when its
// licenseID names an enabled license. Content-Type is not checked.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxWebhookBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", map[string]interface{}{"limit": tooLarge.Limit})
			writeJSON(w, http.StatusRequestEntityTooLarge, WebhookResponse{Status: StatusError, Reason: ReasonTooLarge})
			return
		}
		logger.Warn("failed to read webhook body", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Status: StatusError, Reason: ReasonNoJSON})
		return
	}

	signal, err := models.ParseSignal(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, WebhookResponse{Status: StatusError, Reason: ReasonNoJSON})
		return
	}

	// A missing or non-string licenseID can never match, so skip the lookup.
	valid := false
	licenseID, ok := signal.LicenseID()
	if ok {
		valid, err = s.validator.IsValid(r.Context(), licenseID)
		if err != nil {
			reportError(r, err)
			writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	if !valid {
		s.blocked.Inc()
		logger.Info("signal blocked", map[string]interface{}{"licenseID": licenseID})
		writeJSON(w, http.StatusForbidden, WebhookResponse{Status: StatusBlocked, Reason: ReasonInvalidLicense})
		return
	}

	if err := s.Signals.Overwrite(r.Context(), signal); err != nil {
		reportError(r, err)
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.accepted.Inc()
	logger.Info("signal received", map[string]interface{}{"licenseID": licenseID})
	writeJSON(w, http.StatusOK, WebhookResponse{Status: StatusReceived})
}
