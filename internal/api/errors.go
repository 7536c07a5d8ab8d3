package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/reconcile"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/value"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// statusOf maps a service error to an HTTP status and stable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, history.ErrNoActor):
		return http.StatusUnauthorized, "no_actor"
	case errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found"
	case errors.Is(err, history.ErrVersionNotFound):
		return http.StatusNotFound, "version_not_found"
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, value.ErrFloat),
		errors.Is(err, history.ErrNotArray),
		errors.Is(err, reconcile.ErrMissingIdentity),
		errors.Is(err, reconcile.ErrDuplicateIdentity):
		return http.StatusUnprocessableEntity, "unprocessable"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, diff.ErrMalformedDiff), errors.Is(err, history.ErrLogOrder):
		return http.StatusInternalServerError, "corrupt_history"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(body) //nolint:errcheck // client went away
}
