package authclient

import "sync"

// Watch subscribes to state changes. The channel holds the latest state only: it
// receives the current state at once, and a slow reader sees the most recent value
// rather than every transition. Call cancel to unsubscribe; the channel is closed
// on cancel or Close.
func (c *Client) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch
	ch <- c.state
	c.mu.Unlock()

	cancel := sync.OnceFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(ch)
		}
	})
	return ch, cancel
}

func (c *Client) broadcastLocked(s State) {
	for _, ch := range c.watchers {
		select {
		case ch <- s:
		default:
			// replace the unread value
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (c *Client) closeWatchers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
}
