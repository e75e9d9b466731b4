// Package httpapi holds the JSON plumbing shared by the API handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/dutysched/core/model"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error      string `json:"error"`
	Kind       string `json:"kind"`
	DutyID     string `json:"duty_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Field      string `json:"field,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// StatusFor maps an error category to an HTTP status.
func StatusFor(err error) int {
	switch model.Category(err) {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict, model.ErrIllegalTransition:
		return http.StatusConflict
	case model.ErrTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body describes err for the client.
func Body(err error) ErrorBody {
	b := ErrorBody{Error: err.Error(), Kind: model.CategoryName(err)}
	var (
		conflict *model.AssignmentConflictError
		reserved *model.AlreadyReservedError
		illegal  *model.IllegalTransitionError
		notUn    *model.DutyNotUnassignedError
		field    *model.InvalidFieldError
		dutyNF   *model.DutyNotFoundError
		resNF    *model.ResourceNotFoundError
		routeNF  *model.RouteNotFoundError
		dup      *model.DuplicateResourceError
		missing  *model.MissingRouteError
	)
	switch {
	case errors.As(err, &conflict):
		b.ResourceID, b.DutyID, b.Reason = conflict.ResourceID, conflict.DutyID, conflict.Reason
	case errors.As(err, &reserved):
		b.ResourceID, b.DutyID = reserved.ResourceID, reserved.DutyID
	case errors.As(err, &illegal):
		b.DutyID = illegal.DutyID
		b.Reason = fmt.Sprintf("%s -> %s", illegal.From, illegal.To)
	case errors.As(err, &notUn):
		b.DutyID, b.Reason = notUn.DutyID, string(notUn.State)
	case errors.As(err, &field):
		b.Field, b.Reason = field.Field, field.Reason
	case errors.As(err, &dutyNF):
		b.DutyID = dutyNF.ID
	case errors.As(err, &resNF):
		b.ResourceID = resNF.ID
	case errors.As(err, &routeNF):
		b.ResourceID = routeNF.ID
	case errors.As(err, &dup):
		b.ResourceID = dup.ID
	case errors.As(err, &missing):
		b.DutyID, b.Field = missing.DutyID, "route_id"
	}
	return b
}

// WriteError writes err with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), Body(err))
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON body into v. Unknown fields and trailing data are
// rejected as validation errors.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &model.InvalidFieldError{Field: "body", Reason: err.Error()}
	}
	if dec.More() {
		return &model.InvalidFieldError{Field: "body", Reason: "unexpected trailing data"}
	}
	return nil
}

// QueryTime parses an optional RFC 3339 query parameter.
func QueryTime(r *http.Request, name string) (time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &model.InvalidFieldError{Field: name, Reason: "expected RFC 3339 time"}
	}
	return t, nil
}
