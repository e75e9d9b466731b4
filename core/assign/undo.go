package assign

import "errors"

// undoLog records compensating steps for a mutation in progress.
type undoLog struct {
	steps []func() error
}

func (u *undoLog) push(step func() error) { u.steps = append(u.steps, step) }

// rollback runs the recorded steps newest first and reports every failure.
func (u *undoLog) rollback() error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](); err != nil {
			errs = append(errs, err)
		}
	}
	u.steps = nil
	return errors.Join(errs...)
}
