package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps ingest request bodies (agents batch aggressively)
const maxBodyBytes = 10 << 20 // 10MB

var validate = validator.New()

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
		// Response already started, can't send error to client
	}
}

// respondError writes a JSON error body and logs the underlying cause
func (a *API) respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		a.logger.Errorw(message, "error", err, "status_code", statusCode)
	}
	a.respondJSON(w, map[string]string{"error": message}, statusCode)
}

// decodeJSONBody decodes and validates a JSON request body
func (a *API) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return parsed
}

// queryFloat parses a float query parameter with a default
func queryFloat(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return parsed
}
