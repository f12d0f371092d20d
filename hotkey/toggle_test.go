package hotkey

import (
	"context"
	"testing"
	"time"
)

type events struct {
	start chan struct{}
	stop  chan struct{}
}

func watchFake(t *testing.T, hold time.Duration) (*FakeHotkey, events) {
	t.Helper()
	fk := NewFake()
	ev := events{start: make(chan struct{}, 4), stop: make(chan struct{}, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Watch(ctx, fk, hold, Bindings{
		Start: func() { ev.start <- struct{}{} },
		Stop:  func() { ev.stop <- struct{}{} },
	})
	return fk, ev
}

func expect(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func expectNone(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHoldToTalk(t *testing.T) {
	hold := 50 * time.Millisecond
	fk, ev := watchFake(t, hold)

	fk.SimKeydown()
	expect(t, ev.start, "start")
	time.Sleep(hold + 20*time.Millisecond)
	expectNone(t, ev.stop, "stop while held")
	fk.SimKeyup()
	expect(t, ev.stop, "stop on release")
}

func TestTapToggles(t *testing.T) {
	fk, ev := watchFake(t, 200*time.Millisecond)

	fk.SimKeydown()
	expect(t, ev.start, "start")
	fk.SimKeyup()
	expectNone(t, ev.stop, "stop after a tap")

	fk.SimKeydown()
	expectNone(t, ev.start, "second start")
	fk.SimKeyup()
	expect(t, ev.stop, "stop on second tap")
}

func TestMixedCycles(t *testing.T) {
	hold := 50 * time.Millisecond
	fk, ev := watchFake(t, hold)

	fk.SimKeydown()
	expect(t, ev.start, "start 1")
	time.Sleep(hold + 20*time.Millisecond)
	fk.SimKeyup()
	expect(t, ev.stop, "stop 1")

	fk.SimKeydown()
	expect(t, ev.start, "start 2")
	fk.SimKeyup()
	time.Sleep(20 * time.Millisecond)
	fk.SimKeydown()
	fk.SimKeyup()
	expect(t, ev.stop, "stop 2")
}

func TestWatchStopsOnCancel(t *testing.T) {
	fk := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Watch(ctx, fk, 0, Bindings{Start: func() {}, Stop: func() {}})
		close(done)
	}()
	cancel()
	expect(t, done, "watch exit")
}
