package http

import "net/http"

// UserHeader carries the caller's user id for activity tracking.
const UserHeader = "X-User-ID"

const unmatchedEndpoint = "unmatched"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// track mirrors every request into usage analytics once it has been served.
// The route pattern and path values are read after next runs, when the inner
// mux has set them on the request.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = unmatchedEndpoint
		}
		location := r.PathValue("location")
		if location == "" {
			location = r.URL.Query().Get("location")
		}
		user := r.Header.Get(UserHeader)

		s.deps.Analytics.TrackRequest(endpoint, location, user)
		if rec.status >= http.StatusBadRequest {
			s.deps.Analytics.TrackError(endpoint, errorType(rec.status), user)
		}
	})
}
