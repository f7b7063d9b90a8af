// Package debounce collapses bursts of calls sharing a key into the last one.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to a caller whose call was replaced by a newer one for the same key.
var ErrSuperseded = errors.New("debounce: superseded by a newer call")

type call struct {
	cancel context.CancelCauseFunc
}

// Debouncer delays each call by a quiet window. A new call for a key cancels the
// pending or in-flight call for that key (cancel-and-restart).
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*call
}

func New(window time.Duration) *Debouncer {
	return &Debouncer{window: window, pending: make(map[string]*call)}
}

// Window returns the configured quiet window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Do waits for the quiet window and then runs fn, unless a newer call for key arrives
// first. fn receives a context that is cancelled when the call is superseded.
func (d *Debouncer) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithCancelCause(ctx)
	c := &call{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.pending[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	d.pending[key] = c
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.pending[key] == c {
			delete(d.pending, key)
		}
		d.mu.Unlock()
		cancel(nil)
	}()

	if d.window > 0 {
		timer := time.NewTimer(d.window)
		select {
		case <-timer.C:
		case <-callCtx.Done():
			timer.Stop()
			return context.Cause(callCtx)
		}
	}

	err := fn(callCtx)
	if errors.Is(context.Cause(callCtx), ErrSuperseded) {
		return ErrSuperseded
	}
	return err
}

// Pending reports how many keys have a call waiting or running.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
