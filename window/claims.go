package window

import (
	"sync"

	"stickies/audio"
)

// Claims tracks which window is dictating from which microphone. Windows
// sharing a Claims refuse to start on an input another window holds.
type Claims struct {
	mu     sync.Mutex
	owners map[string]*Window
	held   map[*Window]string
}

func NewClaims() *Claims {
	return &Claims{owners: map[string]*Window{}, held: map[*Window]string{}}
}

func claimKey(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "default"
	}
	return dev.ID
}

// acquire hands dev to w, dropping any other input w held. When another
// window already has dev, that window is returned and nothing changes.
func (c *Claims) acquire(w *Window, dev *audio.DeviceInfo) (*Window, bool) {
	if c == nil {
		return nil, true
	}
	key := claimKey(dev)
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.owners[key]; ok && owner != w {
		return owner, false
	}
	if prev, ok := c.held[w]; ok && prev != key {
		delete(c.owners, prev)
	}
	c.owners[key] = w
	c.held[w] = key
	return nil, true
}

func (c *Claims) release(w *Window) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.held[w]; ok {
		delete(c.owners, key)
		delete(c.held, w)
	}
}

// holder returns the window dictating from dev, or nil.
func (c *Claims) holder(dev *audio.DeviceInfo) *Window {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owners[claimKey(dev)]
}
