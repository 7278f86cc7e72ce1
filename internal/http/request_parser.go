package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fincore/internal/core"
)

// maxBodyBytes bounds request bodies; plans and simulation params are small.
const maxBodyBytes = 64 << 10

// decodeJSON reads a single JSON value into dst. Malformed bodies are
// ErrInvalidInput; a malformed allocation plan keeps its ErrInvalidPlan.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return err
		}
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrInvalidInput, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", core.ErrInvalidInput)
		default:
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidInput, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrInvalidInput)
	}
	return nil
}

// scopeFromRequest builds a scope from the account header and the
// project_id query parameter; bodyProject wins over the query when set.
func scopeFromRequest(r *http.Request, bodyProject string) core.Scope {
	project := strings.TrimSpace(bodyProject)
	if project == "" {
		project = strings.TrimSpace(r.URL.Query().Get("project_id"))
	}
	return core.Scope{
		ProjectID: project,
		AccountID: strings.TrimSpace(r.Header.Get(AccountHeader)),
	}
}
