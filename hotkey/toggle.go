package hotkey

import (
	"context"
	"time"
)

// DefaultHold is how long the combo must be held to count as hold-to-talk.
const DefaultHold = 400 * time.Millisecond

// Bindings are called from the Watch goroutine.
type Bindings struct {
	Start func()
	Stop  func()
}

// Watch turns key events into dictation starts and stops. A short tap
// toggles: the first tap starts, the next press stops on release. Holding
// the combo longer than hold talks until release.
func Watch(ctx context.Context, hk Hotkey, hold time.Duration, b Bindings) {
	if hold <= 0 {
		hold = DefaultHold
	}
	toggled := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
		}

		if toggled {
			if !waitKeyup(ctx, hk) {
				return
			}
			b.Stop()
			toggled = false
			continue
		}

		b.Start()
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-hk.Keyup():
			timer.Stop()
			toggled = true
		case <-timer.C:
			if !waitKeyup(ctx, hk) {
				return
			}
			b.Stop()
		}
	}
}

func waitKeyup(ctx context.Context, hk Hotkey) bool {
	select {
	case <-ctx.Done():
		return false
	case <-hk.Keyup():
		return true
	}
}
