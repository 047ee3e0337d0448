package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"git.home.luguber.info/inful/stargazer/internal/foundation/errors"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a single JSON object into v. Unknown fields and
// trailing data are rejected as validation errors.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "malformed request body").Build()
	}
	if dec.More() {
		return errors.ValidationError("malformed request body").WithContext("reason", "trailing data").Build()
	}
	return nil
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// persistCtx keeps request values but not cancellation, so a client that
// disconnects mid-request cannot interrupt a persistence write.
func persistCtx(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
