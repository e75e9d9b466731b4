// Package export writes vehicle day plans for operators.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/dutysched/core/scheduler"
)

// WriteJSON writes the plan to w in JSON format.
func WriteJSON(w io.Writer, entries []scheduler.PlanEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteCSV writes the plan to w in CSV format, one row per duty. Idle time is
// given in whole minutes.
func WriteCSV(w io.Writer, entries []scheduler.PlanEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vehicle_id", "duty_id", "driver_id", "route_id", "state", "start", "end", "idle_minutes"}); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.VehicleID,
			e.DutyID,
			e.DriverID,
			e.RouteID,
			string(e.State),
			e.Start.Format(time.RFC3339),
			e.End.Format(time.RFC3339),
			strconv.FormatInt(int64(e.Idle/time.Minute), 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
