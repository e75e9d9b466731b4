package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error categories. Every error returned by the engine matches exactly one of
// them with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrTimeout           = errors.New("timeout")
)

// Category returns the category sentinel matched by err, or nil.
func Category(err error) error {
	for _, c := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrIllegalTransition, ErrTimeout} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// CategoryName returns a short machine name for the category of err.
func CategoryName(err error) string {
	switch Category(err) {
	case ErrValidation:
		return "validation"
	case ErrConflict:
		return "conflict"
	case ErrNotFound:
		return "not_found"
	case ErrIllegalTransition:
		return "illegal_transition"
	case ErrTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// InvalidWindowError is returned when a window does not end after it starts.
type InvalidWindowError struct {
	Window TimeWindow
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window: end %s must be after start %s",
		e.Window.End.Format(time.RFC3339), e.Window.Start.Format(time.RFC3339))
}

func (e *InvalidWindowError) Is(target error) bool { return target == ErrValidation }

// MissingRouteError is returned when a linked duty has no route.
type MissingRouteError struct {
	DutyID string
}

func (e *MissingRouteError) Error() string {
	if e.DutyID == "" {
		return "linked duty requires a route"
	}
	return fmt.Sprintf("linked duty %s requires a route", e.DutyID)
}

func (e *MissingRouteError) Is(target error) bool { return target == ErrValidation }

// InvalidFieldError reports a malformed input field.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrValidation }

// DuplicateResourceError is returned when registering an id twice.
type DuplicateResourceError struct {
	ID string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("resource %s already registered", e.ID)
}

func (e *DuplicateResourceError) Is(target error) bool { return target == ErrValidation }

// ResourceNotFoundError is returned for an unknown driver or vehicle.
type ResourceNotFoundError struct {
	ID string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.ID)
}

func (e *ResourceNotFoundError) Is(target error) bool { return target == ErrNotFound }

// RouteNotFoundError is returned for an unknown route.
type RouteNotFoundError struct {
	ID string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("route %s not found", e.ID)
}

func (e *RouteNotFoundError) Is(target error) bool { return target == ErrNotFound }

// DutyNotFoundError is returned for an unknown duty.
type DutyNotFoundError struct {
	ID string
}

func (e *DutyNotFoundError) Error() string {
	return fmt.Sprintf("duty %s not found", e.ID)
}

func (e *DutyNotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyReservedError is returned when a resource already holds the
// reservation or an overlapping one.
type AlreadyReservedError struct {
	ResourceID string
	DutyID     string
}

func (e *AlreadyReservedError) Error() string {
	return fmt.Sprintf("resource %s already reserved by duty %s", e.ResourceID, e.DutyID)
}

func (e *AlreadyReservedError) Is(target error) bool { return target == ErrConflict }

// AssignmentConflictError explains why an assignment was rejected. DutyID is
// the conflicting duty when the reason is an overlap.
type AssignmentConflictError struct {
	ResourceID string
	DutyID     string
	Reason     string
}

func (e *AssignmentConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assignment conflict on %s: %s", e.ResourceID, e.Reason)
	if e.DutyID != "" {
		fmt.Fprintf(&b, " (duty %s)", e.DutyID)
	}
	return b.String()
}

func (e *AssignmentConflictError) Is(target error) bool { return target == ErrConflict }

// DutyNotUnassignedError is returned when assigning a duty that is neither
// unassigned nor scheduled.
type DutyNotUnassignedError struct {
	DutyID string
	State  DutyState
}

func (e *DutyNotUnassignedError) Error() string {
	return fmt.Sprintf("duty %s is %s, expected unassigned or scheduled", e.DutyID, e.State)
}

func (e *DutyNotUnassignedError) Is(target error) bool { return target == ErrIllegalTransition }

// IllegalTransitionError is returned for an edge outside the lifecycle.
type IllegalTransitionError struct {
	DutyID string
	From   DutyState
	To     DutyState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("duty %s: illegal transition %s -> %s", e.DutyID, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// AssignmentTimeoutError is returned when locks could not be acquired in time.
// No state was changed; the request may be resubmitted.
type AssignmentTimeoutError struct {
	Keys []string
	Wait time.Duration
}

func (e *AssignmentTimeoutError) Error() string {
	return fmt.Sprintf("could not lock %s within %s", strings.Join(e.Keys, ","), e.Wait)
}

func (e *AssignmentTimeoutError) Is(target error) bool { return target == ErrTimeout }
