package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// RespondWithError writes {"detail": detail} with the given status.
func RespondWithError(w http.ResponseWriter, code int, detail string) {
	RespondWithJSON(w, code, ErrorResponse{Detail: detail})
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		code = http.StatusInternalServerError
		response = []byte(`{"detail":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
