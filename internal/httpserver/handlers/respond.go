package handlers

import (
	"encoding/json"
	"net/http"
)

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

// respondBlocked carries a denial in the BLOCKED envelope so the UI can
// render it distinctly from a transport error.
func respondBlocked(w http.ResponseWriter, code int, reason string) {
	respondJSON(w, code, map[string]string{"status": "BLOCKED", "reason": reason})
}

// validStudentID mirrors the gate kiosk's input rule: present and at least
// three characters.
func validStudentID(id string) bool {
	return len(id) >= 3
}
