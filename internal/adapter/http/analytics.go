package http

import "net/http"

func (s *Server) analyticsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/v1/analytics/daily", s.handleDailyStats)
	mux.HandleFunc("GET /api/v1/analytics/hourly", s.handleHourlyStats)
	mux.HandleFunc("GET /api/v1/analytics/endpoints", s.handleTopEndpoints)
	mux.HandleFunc("GET /api/v1/analytics/locations", s.handleTopLocations)
	mux.HandleFunc("GET /api/v1/analytics/errors", s.handleErrorStats)
	mux.HandleFunc("GET /api/v1/analytics/users/{user}", s.handleUserActivity)
	mux.HandleFunc("GET /api/v1/analytics/users/{user}/errors", s.handleUserErrors)
	mux.HandleFunc("DELETE /api/v1/analytics", s.handleResetAnalytics)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Analytics.Dashboard(r.Context()))
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", s.deps.Clock.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.DailyStats(r.Context(), date))
}

func (s *Server) handleHourlyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Analytics.HourlyStatsToday(r.Context()))
}

func (s *Server) handleTopEndpoints(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultRankingLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.TopEndpoints(r.Context(), limit))
}

func (s *Server) handleTopLocations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultRankingLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.TopLocations(r.Context(), limit))
}

func (s *Server) handleErrorStats(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", s.deps.Clock.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.ErrorStats(r.Context(), date))
}

func (s *Server) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultRankingLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.UserActivity(r.Context(), r.PathValue("user"), limit))
}

func (s *Server) handleUserErrors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultRankingLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analytics.UserErrors(r.Context(), r.PathValue("user"), limit))
}

func (s *Server) handleResetAnalytics(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Analytics.ResetAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
