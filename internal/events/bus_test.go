package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

const quiet = 20 * time.Millisecond

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func none[T any](t *testing.T, ch <-chan T, why string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("%s: got %+v", why, v)
	case <-time.After(quiet):
	}
}

func TestBus_DeliversByType(t *testing.T) {
	bus := New()
	jacks := make(chan JackStateChangedEvent, 1)
	links := make(chan LinkStateChangedEvent, 1)
	defer bus.Subscribe(func(e JackStateChangedEvent) { jacks <- e })()
	defer bus.Subscribe(func(e LinkStateChangedEvent) { links <- e })()

	bus.Publish(JackStateChangedEvent{Switch: "h2w", State: 2, Present: true})
	if got := recv(t, jacks); got.State != 2 || !got.Present {
		t.Errorf("unexpected jack event %+v", got)
	}
	none(t, links, "link subscriber saw a jack event")

	bus.Publish(LinkStateChangedEvent{Link: "spdif", Active: true})
	if got := recv(t, links); got.GetLinkName() != "spdif" || !got.IsActive() {
		t.Errorf("unexpected link event %+v", got)
	}
	none(t, jacks, "jack subscriber saw a link event")
}

func TestBus_FanOutAndCancel(t *testing.T) {
	bus := New()
	a := make(chan ClockStateChangedEvent, 2)
	b := make(chan ClockStateChangedEvent, 2)
	cancelA := bus.Subscribe(func(e ClockStateChangedEvent) { a <- e })
	defer bus.Subscribe(func(e ClockStateChangedEvent) { b <- e })()

	bus.Publish(ClockStateChangedEvent{LockedMCLK: 12288000, LockCount: 1})
	recv(t, a)
	recv(t, b)

	cancelA()
	bus.Publish(ClockStateChangedEvent{LockCount: 0})
	if got := recv(t, b); got.LockCount != 0 {
		t.Errorf("got %+v", got)
	}
	none(t, a, "cancelled subscriber still called")
}

func TestBus_EveryEventType(t *testing.T) {
	bus := New()
	got := make(chan Event, 5)
	defer bus.Subscribe(func(e LinkStateChangedEvent) { got <- e })()
	defer bus.Subscribe(func(e ClockStateChangedEvent) { got <- e })()
	defer bus.Subscribe(func(e JackStateChangedEvent) { got <- e })()
	defer bus.Subscribe(func(e CardPowerChangedEvent) { got <- e })()
	defer bus.Subscribe(func(e LogEntryEvent) { got <- e })()

	sent := []Event{
		LinkStateChangedEvent{Link: "hifi"},
		ClockStateChangedEvent{LockCount: 1},
		JackStateChangedEvent{Switch: "h2w"},
		CardPowerChangedEvent{State: "suspended"},
		LogEntryEvent{Seq: 1, Message: "probe"},
	}
	for _, ev := range sent {
		bus.Publish(ev)
		if r := recv(t, got); r.Type() != ev.Type() {
			t.Errorf("published type %d, received %d", ev.Type(), r.Type())
		}
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	const writers, each = 8, 50
	bus := New()
	var mu sync.Mutex
	seen := 0
	done := make(chan struct{})
	defer bus.Subscribe(func(CardPowerChangedEvent) {
		mu.Lock()
		seen++
		if seen == writers*each {
			close(done)
		}
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				bus.Publish(CardPowerChangedEvent{State: "resumed"})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("saw %d of %d events", seen, writers*each)
	}
}

func TestBus_UnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	cancel := bus.Subscribe(func(string) {})
	if cancel == nil {
		t.Fatal("expected a cancel func")
	}
	cancel()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	defer SubscribeToChannel[JackStateChangedEvent](bus, ch)()

	bus.Publish(JackStateChangedEvent{Switch: "h2w"})
	ev, ok := recv(t, ch).(JackStateChangedEvent)
	if !ok || ev.Switch != "h2w" {
		t.Errorf("got %#v", ev)
	}

	// A second event with nobody draining must not block publishing.
	bus.Publish(JackStateChangedEvent{Switch: "h2w", State: 1})
	bus.Publish(JackStateChangedEvent{Switch: "h2w", State: 2})
	recv(t, ch)
}

func TestEventJSONKeys(t *testing.T) {
	cases := []struct {
		ev   Event
		keys []string
	}{
		{LinkStateChangedEvent{Link: "hifi", Active: true, Rate: 48000, MCLK: 12288000}, []string{"link", "active", "rate", "mclk", "timestamp"}},
		{ClockStateChangedEvent{LockedMCLK: 24576000, LockCount: 2}, []string{"requested_rate", "programmed_mclk", "locked_mclk", "lock_count"}},
		{JackStateChangedEvent{Switch: "h2w", State: 2, Present: true}, []string{"switch", "state", "present"}},
		{CardPowerChangedEvent{State: "probed"}, []string{"state"}},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.ev)
		if err != nil {
			t.Fatal(err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatal(err)
		}
		for _, k := range tc.keys {
			if _, ok := m[k]; !ok {
				t.Errorf("%T: missing %q in %s", tc.ev, k, data)
			}
		}
	}
	data, _ := json.Marshal(CardPowerChangedEvent{State: "probed"})
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	if _, ok := m["error"]; ok {
		t.Error("empty error should be omitted")
	}
}
