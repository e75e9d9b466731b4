package sqlite

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/model"
)

// Store is a dutystore.Store stored in SQLite.
type Store struct {
	db *sql.DB
}

var _ dutystore.Store = (*Store)(nil)

func loadDuty(q queryer, id string) (model.Duty, error) {
	var doc string
	err := q.QueryRow(`SELECT doc FROM duties WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Duty{}, &model.DutyNotFoundError{ID: id}
	}
	if err != nil {
		return model.Duty{}, err
	}
	return decode[model.Duty](doc)
}

func dutyArgs(d model.Duty) ([]any, error) {
	doc, err := encode(d)
	if err != nil {
		return nil, err
	}
	return []any{string(d.Kind), string(d.State), d.DriverID, d.VehicleID,
		d.Window.Start.UnixNano(), d.Window.End.UnixNano(), doc, d.ID}, nil
}

func saveDuty(tx *sql.Tx, d model.Duty) error {
	args, err := dutyArgs(d)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE duties SET kind = ?, state = ?, driver_id = ?, vehicle_id = ?,
        start_ns = ?, end_ns = ?, doc = ? WHERE id = ?`, args...)
	return err
}

func (s *Store) update(id string, fn func(model.Duty) (model.Duty, error)) (model.Duty, error) {
	var out model.Duty
	err := withTx(s.db, func(tx *sql.Tx) error {
		d, err := loadDuty(tx, id)
		if err != nil {
			return err
		}
		if out, err = fn(d); err != nil {
			return err
		}
		return saveDuty(tx, out)
	})
	return out, err
}

func (s *Store) Create(d model.Duty) (model.Duty, error) {
	d, err := dutystore.Prepare(d, time.Now().UTC())
	if err != nil {
		return d, err
	}
	args, err := dutyArgs(d)
	if err != nil {
		return d, err
	}
	err = withTx(s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM duties WHERE id = ?`, d.ID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return &model.InvalidFieldError{Field: "id", Reason: "duty " + d.ID + " already exists"}
		}
		_, err := tx.Exec(`INSERT INTO duties (kind, state, driver_id, vehicle_id, start_ns, end_ns, doc, id)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		return err
	})
	return d, err
}

func (s *Store) Get(id string) (model.Duty, error) {
	return loadDuty(s.db, id)
}

// List pushes the indexed filters into SQL and applies the full filter to
// the decoded rows.
func (s *Store) List(f dutystore.Filter) ([]model.Duty, error) {
	var (
		where []string
		args  []any
	)
	if len(f.States) > 0 {
		marks := make([]string, len(f.States))
		for i, st := range f.States {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "state IN ("+strings.Join(marks, ",")+")")
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.DriverID != "" {
		where = append(where, "driver_id = ?")
		args = append(args, f.DriverID)
	}
	if f.VehicleID != "" {
		where = append(where, "vehicle_id = ?")
		args = append(args, f.VehicleID)
	}
	query := `SELECT doc FROM duties`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	all, err := listDocs[model.Duty](s.db, query, args...)
	if err != nil {
		return nil, err
	}
	res := all[:0]
	for _, d := range all {
		if f.Match(d) {
			res = append(res, d)
		}
	}
	dutystore.SortDuties(res)
	return res, nil
}

func (s *Store) Transition(id string, to model.DutyState, at time.Time) (model.Duty, error) {
	return s.update(id, func(d model.Duty) (model.Duty, error) {
		return dutystore.ApplyTransition(d, to, at)
	})
}

func (s *Store) Bind(id, driverID, vehicleID, routeID string, at time.Time) (model.Duty, error) {
	return s.update(id, func(d model.Duty) (model.Duty, error) {
		return dutystore.ApplyBind(d, driverID, vehicleID, routeID, at)
	})
}

func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM duties WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &model.DutyNotFoundError{ID: id}
	}
	return nil
}

func (s *Store) Restore(d model.Duty) error {
	_, err := s.update(d.ID, func(model.Duty) (model.Duty, error) { return d, nil })
	return err
}
