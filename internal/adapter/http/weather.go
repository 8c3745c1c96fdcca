package http

import (
	"net/http"

	"github.com/couchcryptid/weather-cache-service/internal/domain"
)

const (
	defaultForecastDays = 7
	defaultRankingLimit = 10
)

func (s *Server) weatherRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/weather/current/{location}", s.handleCurrent)
	mux.HandleFunc("GET /api/v1/weather/forecast/{location}", s.handleForecast)
	mux.HandleFunc("GET /api/v1/weather/historical/{location}", s.handleHistorical)
	mux.HandleFunc("GET /api/v1/weather/popular", s.handlePopular)
	mux.HandleFunc("DELETE /api/v1/weather/cache/{location}", s.handleClearLocation)
	mux.HandleFunc("GET /api/v1/weather/preferences/{user}", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/v1/weather/preferences/{user}", s.handlePutPreferences)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	reading, err := s.deps.Weather.CurrentWeather(r.Context(), r.PathValue("location"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultForecastDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	readings, err := s.deps.Weather.Forecast(r.Context(), r.PathValue("location"), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location_id": r.PathValue("location"), "days": readings})
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	start, err := requireDate(r, "start")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := requireDate(r, "end")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.deps.Weather.Historical(r.Context(), r.PathValue("location"), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultRankingLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Weather.PopularLocations(r.Context(), limit))
}

func (s *Server) handleClearLocation(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Weather.ClearLocationCache(r.Context(), r.PathValue("location"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"evicted": n})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, found, err := s.deps.Weather.Preferences(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no preferences stored"})
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if err := decodeJSON(w, r, &prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Weather.PutPreferences(r.Context(), r.PathValue("user"), prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
