package journal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/dutysched/core/journal"
	"github.com/kilianp07/dutysched/core/model"
)

func seed(t *testing.T) journal.LogStore {
	t.Helper()
	store := journal.NewMemoryStore()
	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	evs := []model.TransitionEvent{
		{Seq: 1, DutyID: "d1", Next: model.StateScheduled, DriverID: "D1", VehicleID: "V1", At: at},
		{Seq: 2, DutyID: "d1", Previous: model.StateScheduled, Next: model.StateAssigned, DriverID: "D1", VehicleID: "V1", At: at},
		{Seq: 3, DutyID: "d2", Next: model.StateUnassigned, At: at.Add(time.Hour)},
		{Seq: 4, DutyID: "d1", Previous: model.StateAssigned, Next: model.StateInProgress, DriverID: "D1", VehicleID: "V1", At: at.Add(2 * time.Hour)},
	}
	for _, ev := range evs {
		if err := store.Append(context.Background(), journal.Record{TransitionEvent: ev, RecordedAt: ev.At}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return store
}

func query(t *testing.T, h http.Handler, url string) ([]journal.Record, int) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))
	if rr.Code != http.StatusOK {
		return nil, rr.Code
	}
	var out []journal.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out, rr.Code
}

func TestLogHandler_Filters(t *testing.T) {
	h := NewLogHandler(seed(t))

	out, _ := query(t, h, "/api/journal")
	if len(out) != 4 {
		t.Fatalf("expected 4 records, got %d", len(out))
	}
	out, _ = query(t, h, "/api/journal?duty_id=d1")
	if len(out) != 3 {
		t.Fatalf("expected 3 records for d1, got %d", len(out))
	}
	out, _ = query(t, h, "/api/journal?vehicle_id=V1&state=assigned")
	if len(out) != 1 || out[0].Seq != 2 {
		t.Fatalf("unexpected state filter result: %+v", out)
	}
	out, _ = query(t, h, "/api/journal?start=2025-03-10T09:00:00Z&end=2025-03-10T09:30:00Z")
	if len(out) != 1 || out[0].DutyID != "d2" {
		t.Fatalf("unexpected time filter result: %+v", out)
	}
	out, _ = query(t, h, "/api/journal?limit=2")
	if len(out) != 2 || out[0].Seq != 3 || out[1].Seq != 4 {
		t.Fatalf("limit should keep the most recent records: %+v", out)
	}
}

func TestLogHandler_BadRequests(t *testing.T) {
	h := NewLogHandler(seed(t))
	for _, url := range []string{
		"/api/journal?state=lost",
		"/api/journal?start=yesterday",
		"/api/journal?limit=-1",
	} {
		if _, code := query(t, h, url); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", url, code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/journal", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}
