// Package httputil provides the small set of JSON request/response helpers
// shared by every coordinator handler, grounded on the call conventions the
// teacher repo's handlers use against its (unretrieved) internal/httputil
// package: WriteJSON, DecodeJSON, and typed error responses.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vaultcrack/recoverd/internal/apperr"
)

const maxBodyBytes = 1 << 20 // 1MiB; request bodies here are tiny JSON objects.

// WriteJSON encodes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the {error:"<message>"} envelope every error response carries.
type errorBody struct {
	Error string `json:"error"`
}

// WriteError unwraps err, if it is an *apperr.Error, to pick the right status
// code; otherwise it falls back to 500. Every error is written through this
// single function so the wire format stays consistent.
func WriteError(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok {
		WriteJSON(w, appErr.HTTPStatus(), errorBody{Error: appErr.Message})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

// WriteErrorMessage writes a plain {error:"<msg>"} body at the given status,
// for call sites that don't have a typed apperr.Error handy.
func WriteErrorMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{Error: msg})
}

// DecodeJSON decodes the request body into v, limiting its size and
// rejecting unknown fields the way a careful API surface should.
func DecodeJSON(r *http.Request, v interface{}) error {
	defer io.Copy(io.Discard, r.Body) //nolint:errcheck // drain on all paths
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.ValidationError("invalid request body: " + err.Error())
	}
	return nil
}
