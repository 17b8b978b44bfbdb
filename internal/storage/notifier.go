package storage

import "sync"

// notifier fans change events out to subscribers synchronously, in
// registration order, one call per event.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(ChangeEvent)
	order  []int
}

func newNotifier() *notifier {
	return &notifier{subs: map[int]func(ChangeEvent){}}
}

func (n *notifier) subscribe(fn func(ChangeEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.order = append(n.order, id)
	return func() {
		// Safe to call more than once; the second call finds nothing.
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[id]; !ok {
			return
		}
		delete(n.subs, id)
		for i, v := range n.order {
			if v == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

func (n *notifier) publish(ev ChangeEvent) {
	n.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(n.subs))
	for _, id := range n.order {
		if fn, ok := n.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
