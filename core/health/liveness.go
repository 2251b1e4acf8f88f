package health

import "net/http"

// Liveness reports that the process is serving. No dependency checks.
func Liveness(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ALIVE")
}

// NoContent returns 204 without a body, for high-frequency pings.
func NoContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
