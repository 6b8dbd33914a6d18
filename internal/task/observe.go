package task

import "context"

// Observe follows a task from now on. The channel yields the current status
// message (if any), every later distinct message in report order, then one
// terminal event, and closes. If the task is already terminal only the
// terminal event is sent. Cancelling ctx closes the channel early.
func (r *Registry) Observe(ctx context.Context, id string) (<-chan Event, error) {
	c, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	out := make(chan Event, 8)
	go func() {
		defer close(out)
		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		c.mu.RLock()
		if c.state.Terminal() {
			snap := c.snapshotLocked()
			c.mu.RUnlock()
			send(Event{Type: EventTerminal, Message: terminalMessage(snap), Snapshot: snap})
			return
		}
		cursor := len(c.history) - 1
		if cursor < 0 {
			cursor = 0
		}
		c.mu.RUnlock()

		for {
			c.mu.RLock()
			pending := append([]string(nil), c.history[cursor:]...)
			cursor = len(c.history)
			terminal := c.state.Terminal()
			var snap Snapshot
			if terminal {
				snap = c.snapshotLocked()
			}
			wait := c.changed
			c.mu.RUnlock()

			for _, msg := range pending {
				if !send(Event{Type: EventStatus, Message: msg}) {
					return
				}
			}
			if terminal {
				send(Event{Type: EventTerminal, Message: terminalMessage(snap), Snapshot: snap})
				return
			}
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func terminalMessage(s Snapshot) string {
	if s.Result == nil {
		return ""
	}
	if s.State == StateSuccess {
		return s.Result.Message
	}
	return "Error: " + s.Result.Error
}
