package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/dutysched/core/feed"
	coremqtt "github.com/kilianp07/dutysched/core/mqtt"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/infra/logger"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// StartBridge subscribes to f before returning and publishes every event
// with pub until ctx is cancelled or the feed is closed. The returned
// channel closes when the bridge stops.
func StartBridge(ctx context.Context, f *feed.Feed, pub Publisher, buffer int) <-chan struct{} {
	log := logger.New("mqtt_bridge")
	sub := f.Subscribe(buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sub.Close()
		for ev := range sub.All(ctx) {
			if err := pub.PublishEvent(ev); err != nil {
				log.Warnf("publish seq=%d duty=%s: %v", ev.Seq, ev.DutyID, err)
			}
		}
	}()
	return done
}

// MockPublisher records published events for tests.
type MockPublisher struct {
	mu      sync.Mutex
	Events  []model.TransitionEvent
	FailIDs map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailIDs: make(map[string]bool)}
}

// PublishEvent records ev or fails when its duty id is configured to fail.
func (m *MockPublisher) PublishEvent(ev model.TransitionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[ev.DutyID] {
		return fmt.Errorf("publish failed")
	}
	m.Events = append(m.Events, ev)
	return nil
}

// Published returns a copy of the recorded events.
func (m *MockPublisher) Published() []model.TransitionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TransitionEvent(nil), m.Events...)
}
