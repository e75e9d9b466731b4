// Package monitoring forwards unexpected failures to an error monitor.
package monitoring

import (
	"errors"
	"time"

	"github.com/kilianp07/dutysched/core/model"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// CaptureFailure reports err for operation op unless it is an expected
// outcome of a request. Validation, not-found, conflict and
// illegal-transition errors are answers to the caller and are skipped.
func CaptureFailure(op string, err error) {
	if err == nil || !Unexpected(err) {
		return
	}
	tags := ErrorTags(err)
	tags["op"] = op
	CaptureException(err, tags)
}

// Unexpected reports whether err falls outside the request error categories
// or is a lock timeout.
func Unexpected(err error) bool {
	c := model.Category(err)
	return c == nil || c == model.ErrTimeout
}

// ErrorTags extracts the category and the ids carried by typed errors.
func ErrorTags(err error) map[string]string {
	tags := map[string]string{"kind": model.CategoryName(err)}
	var (
		conflict *model.AssignmentConflictError
		reserved *model.AlreadyReservedError
		illegal  *model.IllegalTransitionError
		missing  *model.DutyNotFoundError
		resource *model.ResourceNotFoundError
	)
	switch {
	case errors.As(err, &conflict):
		tags["resource_id"] = conflict.ResourceID
		if conflict.DutyID != "" {
			tags["duty_id"] = conflict.DutyID
		}
	case errors.As(err, &reserved):
		tags["resource_id"] = reserved.ResourceID
		tags["duty_id"] = reserved.DutyID
	case errors.As(err, &illegal):
		tags["duty_id"] = illegal.DutyID
	case errors.As(err, &missing):
		tags["duty_id"] = missing.ID
	case errors.As(err, &resource):
		tags["resource_id"] = resource.ID
	}
	return tags
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
