package engine

import (
	"context"
	"slices"
)

// Update is delivered to listeners after a pass that changed the graph,
// a node's state, or the cycle condition.
type Update struct {
	Pass PassSummary
	View View
}

// Listener receives updates. It runs after the engine lock is released,
// before the triggering mutation returns, and must not block. Updates arrive
// in pass order. ctx is marked as belonging to the pass: engine calls made
// with it return ErrReentrantPass. A listener may read views, or mutate with
// a context of its own; the resulting update is delivered after the current
// one.
type Listener func(ctx context.Context, u Update)

// Subscribe registers fn and returns a function that removes it.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		delete(e.listeners, id)
	}
}

// pending is an update waiting for delivery.
type pending struct {
	ctx context.Context
	u   Update
}

// enqueue queues an update for summary. Caller must hold e.mu.
func (e *Engine) enqueue(ctx context.Context, summary PassSummary) {
	if len(e.subscribers()) == 0 {
		return
	}
	e.queue = append(e.queue, pending{ctx: withinPass(ctx, summary.Seq), u: Update{Pass: summary, View: e.view()}})
}

// deliver drains the queue. One goroutine drains at a time; a mutation made
// while another goroutine (or an enclosing listener) is draining leaves its
// update in the queue for that drainer. Must not be called with e.mu held.
func (e *Engine) deliver() {
	for {
		if !e.deliverMu.TryLock() {
			return
		}
		for {
			p, ok := e.dequeue()
			if !ok {
				break
			}
			for _, fn := range e.subscribers() {
				fn(p.ctx, p.u)
			}
		}
		e.deliverMu.Unlock()

		// An update queued after the last dequeue but before the unlock
		// found deliverMu held and left it to us.
		e.mu.Lock()
		more := len(e.queue) > 0
		e.mu.Unlock()
		if !more {
			return
		}
	}
}

func (e *Engine) dequeue() (pending, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return pending{}, false
	}
	p := e.queue[0]
	e.queue[0] = pending{}
	e.queue = e.queue[1:]
	return p, true
}

// subscribers returns the listeners in subscription order.
func (e *Engine) subscribers() []Listener {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = e.listeners[id]
	}
	return fns
}
