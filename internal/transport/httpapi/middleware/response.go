package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
)

// writeError renders the same error body as the handlers
func writeError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.HTTPStatus(code))
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}{Error: message, Code: code})
}
