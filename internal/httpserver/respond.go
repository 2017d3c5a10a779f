package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wisbric/quotagate/internal/contract"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// RespondError writes the single canonical error envelope (spec.md §7):
// `{ "error": <kind>, "message": <human string> }`.
func RespondError(w http.ResponseWriter, err *contract.Error) {
	Respond(w, err.Kind.StatusCode(), err.ToEnvelope())
}
