package journal

import (
	"context"
	"time"

	"github.com/kilianp07/dutysched/core/feed"
	"github.com/kilianp07/dutysched/core/logger"
	"github.com/kilianp07/dutysched/core/monitoring"
)

// Recorder appends feed events to a LogStore.
type Recorder struct {
	store LogStore
	log   logger.Logger
	now   func() time.Time
}

func NewRecorder(store LogStore, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Recorder{store: store, log: log, now: time.Now}
}

// Start subscribes to f before returning and appends events until ctx is
// cancelled or the feed is closed. The returned channel closes when the
// recorder stops.
func (r *Recorder) Start(ctx context.Context, f *feed.Feed, buffer int) <-chan struct{} {
	sub := f.Subscribe(buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		var warned uint64
		for ev := range sub.All(ctx) {
			rec := Record{TransitionEvent: ev, RecordedAt: r.now()}
			if err := r.store.Append(ctx, rec); err != nil {
				r.log.Errorf("journal append seq=%d duty=%s: %v", ev.Seq, ev.DutyID, err)
				monitoring.CaptureFailure("journal_append", err)
			}
			if d := sub.Dropped(); d > warned {
				r.log.Warnf("journal fell behind, %d events dropped", d-warned)
				warned = d
			}
		}
	}()
	return done
}
