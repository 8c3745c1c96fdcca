package http

import (
	"net/http"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

func (s *Server) alertRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/alerts/active", s.handleActiveAlerts)
	mux.HandleFunc("GET /api/v1/alerts/severity/{severity}", s.handleAlertsBySeverity)
	mux.HandleFunc("POST /api/v1/alerts", s.handleCreateAlert)
	mux.HandleFunc("POST /api/v1/alerts/{id}/cancel", s.handleCancelAlert)
	mux.HandleFunc("PUT /api/v1/alerts/{id}/status", s.handleUpdateStatus)
	mux.HandleFunc("POST /api/v1/alerts/subscriptions", s.handleSubscribe)
	mux.HandleFunc("DELETE /api/v1/alerts/subscriptions/{user}/{location}", s.handleUnsubscribe)
	mux.HandleFunc("GET /api/v1/alerts/subscriptions/{user}", s.handleSubscriptions)
}

type alertList struct {
	Alerts []domain.Alert `json:"alerts"`
	Count  int            `json:"count"`
}

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	var (
		list []domain.Alert
		err  error
	)
	if location := r.URL.Query().Get("location"); location != "" {
		list, err = s.deps.Alerts.GetActiveAlerts(r.Context(), location)
	} else {
		list, err = s.deps.Alerts.ListActive(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alertList{Alerts: list, Count: len(list)})
}

func (s *Server) handleAlertsBySeverity(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Alerts.ListBySeverity(r.Context(), r.PathValue("severity"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alertList{Alerts: list, Count: len(list)})
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var in domain.NewAlert
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.deps.Alerts.CreateAlert(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelAlert(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	a, err := s.deps.Alerts.CancelAlert(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		s.writeError(w, r, &domain.ValidationError{Field: "status", Reason: "must be one of ACTIVE, EXPIRED, CANCELLED"})
		return
	}
	a, err := s.deps.Alerts.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type subscribeRequest struct {
	UserID     string             `json:"user_id"`
	LocationID string             `json:"location_id"`
	AlertTypes []domain.AlertType `json:"alert_types"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.deps.Alerts.Subscribe(r.Context(), req.UserID, req.LocationID, req.AlertTypes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Alerts.Unsubscribe(r.Context(), r.PathValue("user"), r.PathValue("location")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Alerts.Subscriptions(r.Context(), r.PathValue("user")))
}
