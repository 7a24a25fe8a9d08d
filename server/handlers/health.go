package handlers

import "net/http"

// HandleHealth is a liveness check. It reports "ok" whether or not a run is active.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
