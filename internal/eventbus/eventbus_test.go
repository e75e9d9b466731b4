package eventbus

import "testing"

func TestBusPublishSubscribe(t *testing.T) {
	bus := New[string]()
	sub := bus.Subscribe(4)
	bus.Publish("hello")
	v := <-sub.C()
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(sub)
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
	if bus.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.Len())
	}
}

func TestBusDropsOldest(t *testing.T) {
	bus := New[int]()
	sub := bus.Subscribe(3)
	for i := 1; i <= 5; i++ {
		bus.Publish(i)
	}
	if sub.Dropped() != 2 {
		t.Fatalf("expected 2 dropped got %d", sub.Dropped())
	}
	for _, want := range []int{3, 4, 5} {
		if got := <-sub.C(); got != want {
			t.Fatalf("expected %d got %d", want, got)
		}
	}
}

func TestBusSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	bus := New[int]()
	slow := bus.Subscribe(1)
	fast := bus.Subscribe(8)
	for i := 0; i < 4; i++ {
		bus.Publish(i)
	}
	if fast.Dropped() != 0 || len(fast.C()) != 4 {
		t.Fatalf("fast subscriber lost events: dropped=%d queued=%d", fast.Dropped(), len(fast.C()))
	}
	if slow.Dropped() != 3 {
		t.Fatalf("expected slow subscriber to drop 3 got %d", slow.Dropped())
	}
}

func TestBusClose(t *testing.T) {
	bus := New[string]()
	s1 := bus.Subscribe(0)
	s2 := bus.Subscribe(0)
	bus.Close()
	if _, ok := <-s1.C(); ok {
		t.Fatalf("expected s1 closed")
	}
	if _, ok := <-s2.C(); ok {
		t.Fatalf("expected s2 closed")
	}
	bus.Publish("ignored")
	late := bus.Subscribe(0)
	if _, ok := <-late.C(); ok {
		t.Fatalf("expected subscription after close to be closed")
	}
}

func TestBusUnsubscribeAfterClose(t *testing.T) {
	bus := New[string]()
	sub := bus.Subscribe(0)
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(sub)
}
