package dutystore_test

import (
	"testing"
	"time"

	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/dutystore/storetest"
	"github.com/kilianp07/dutysched/core/model"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) dutystore.Store { return dutystore.NewMemoryStore() })
}

func TestFilter_OpenBounds(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	d := model.Duty{Window: model.TimeWindow{Start: day.Add(8 * time.Hour), End: day.Add(10 * time.Hour)}}
	if !(dutystore.Filter{From: day.Add(9 * time.Hour)}).Match(d) {
		t.Fatalf("from-only filter should match overlapping duty")
	}
	if (dutystore.Filter{From: day.Add(10 * time.Hour)}).Match(d) {
		t.Fatalf("duty ending at From must not match")
	}
	if !(dutystore.Filter{To: day.Add(9 * time.Hour)}).Match(d) {
		t.Fatalf("to-only filter should match")
	}
	if (dutystore.Filter{To: day.Add(8 * time.Hour)}).Match(d) {
		t.Fatalf("duty starting at To must not match")
	}
}
