package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/dutysched/core/feed"
	coremetrics "github.com/kilianp07/dutysched/core/metrics"
	"github.com/kilianp07/dutysched/infra/logger"
)

const collectorName = "metrics-collector"

// StartEventCollector subscribes to the feed and records every transition in
// sink. When interval is positive it also records a dashboard summary and the
// subscriber's drop count on each tick, for sinks supporting them. The
// subscription is taken before returning; the returned channel closes once the
// collector has stopped, which happens when ctx is cancelled or the feed is
// closed.
func StartEventCollector(ctx context.Context, f *feed.Feed, sink coremetrics.MetricsSink, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if f == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New(collectorName)
	sub := f.Subscribe(0)
	go func() {
		defer close(done)
		defer sub.Close()

		var tick <-chan time.Time
		if interval > 0 {
			t := time.NewTicker(interval)
			defer t.Stop()
			tick = t.C
		}
		var reported uint64
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				if err := sink.RecordTransition(ev); err != nil {
					log.Warnf("record transition %s: %v", ev.DutyID, err)
				}
			case now := <-tick:
				if rec, ok := sink.(coremetrics.DashboardRecorder); ok {
					summary, err := f.Summary(ctx)
					if err != nil {
						log.Debugf("summary unavailable: %v", err)
					} else if err := rec.RecordDashboard(coremetrics.DashboardEvent{Dashboard: summary, Seq: f.Seq(), Time: now}); err != nil {
						log.Warnf("record dashboard: %v", err)
					}
				}
				if rec, ok := sink.(coremetrics.DropRecorder); ok {
					total := sub.Dropped()
					if total > reported {
						if err := rec.RecordDrops(coremetrics.DropEvent{Subscriber: collectorName, Dropped: total - reported, Time: now}); err != nil {
							log.Warnf("record drops: %v", err)
						}
						reported = total
					}
				}
			}
		}
	}()
	return done
}
