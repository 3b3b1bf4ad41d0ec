package mockapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type errorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": map[string]any{"message": message}})
}

func writeValidation(w http.ResponseWriter, details ...errorDetail) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"success": false,
		"error":   map[string]any{"message": "Validation failed", "details": details},
	})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func pathID(r *http.Request) int {
	return atoi(mux.Vars(r)["id"])
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
