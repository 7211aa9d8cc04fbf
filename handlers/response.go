package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeCachedJSON adds the public cache headers used by read endpoints
func writeCachedJSON(w http.ResponseWriter, maxAge string, v interface{}) {
	w.Header().Set("Cache-Control", "public, max-age="+maxAge+", stale-while-revalidate=30")
	w.Header().Set("Vary", "Accept-Encoding")
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

func writeInternal(w http.ResponseWriter, msg string, err error) {
	writeError(w, http.StatusInternalServerError, msg, map[string]interface{}{
		"internal": err.Error(),
	})
}

// writeValidation reports struct validation failures field by field
func writeValidation(w http.ResponseWriter, err error) {
	details := map[string]interface{}{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	} else {
		details["body"] = err.Error()
	}
	writeError(w, http.StatusBadRequest, "Invalid request body", details)
}

// decodeBody decodes a JSON request body into dst, capped at 1 MiB
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
