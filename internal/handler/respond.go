package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/maktaba-app/maktaba/internal/domain"
)

// maxJSONBody caps JSON request bodies. Media uploads use multipart
// forms with their own limits and never pass through decodeJSON.
const maxJSONBody = 1 << 20 // 1 MB

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into dst, rejecting unknown
// fields and oversized bodies.
func decodeJSON(op string, w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Errorf(domain.ETOOLARGE, op, "Request body exceeds %d bytes", maxJSONBody)
		}
		return domain.Invalid(op, "Invalid JSON request body")
	}
	return nil
}

// pathUUID parses the {id} path segment of a request.
func pathUUID(op string, r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid(op, "Invalid ID in URL")
	}
	return id, nil
}

// pathContentType parses the {type} path segment ("books" or "nashids").
func pathContentType(op string, r *http.Request) (domain.ContentType, error) {
	ct := domain.ContentType(r.PathValue("type"))
	if !domain.ValidContentType(ct) {
		return "", domain.Errorf(domain.EINVALID, op, "Unknown content type %q", ct)
	}
	return ct, nil
}
