package store

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// subscription is one live listener. Delivery is serial per subscription:
// a single worker drains the queue, so two callbacks of the same
// subscription never overlap, while different subscriptions run
// independently.
type subscription struct {
	collection string
	q          Query
	fn         func([]Change)
	matched    map[string]struct{} // doc ids currently inside the filter

	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]Change
	closed bool
}

func (s *subscription) enqueue(batch []Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, batch)
	s.cond.Signal()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscription) loop() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.deliver(batch)
	}
}

// deliver re-checks closed right before invoking the callback, so an event
// already dequeued when cancel arrives is dropped rather than delivered.
// A panicking callback is isolated to its own subscription.
func (s *subscription) deliver(batch []Change) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "store.hub").Str("collection", s.collection).
				Any("panic", r).Msg("subscriber callback panicked")
		}
	}()
	s.fn(batch)
}

// hub tracks subscriptions and translates committed writes into per-
// subscription change records. All entry points run under the owning
// engine's commit lock, which is what keeps delivery in causal order.
type hub struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscription]struct{})}
}

// add registers a subscription and queues its initial snapshot as one
// Added batch. Caller holds the engine commit lock, so no commit can
// interleave between snapshot and the first incremental batch.
func (h *hub) add(collection string, q Query, fn func([]Change), initial []Snapshot) func() {
	sub := &subscription{
		collection: collection,
		q:          q,
		fn:         fn,
		matched:    make(map[string]struct{}, len(initial)),
	}
	sub.cond = sync.NewCond(&sub.mu)

	batch := make([]Change, 0, len(initial))
	for _, snap := range initial {
		sub.matched[snap.ID] = struct{}{}
		batch = append(batch, Change{Type: Added, ID: snap.ID, Data: cloneDoc(snap.Data)})
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go sub.loop()
	sub.enqueue(batch)

	return func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		sub.close()
	}
}

// publish routes one committed document mutation to every interested
// subscription. data is the post-image, nil when the document was deleted.
func (h *hub) publish(collection, id string, data Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.collection != collection {
			continue
		}
		_, wasMatched := sub.matched[id]
		nowMatched := data != nil && matches(data, sub.q)
		switch {
		case nowMatched && !wasMatched:
			sub.matched[id] = struct{}{}
			sub.enqueue([]Change{{Type: Added, ID: id, Data: cloneDoc(data)}})
		case nowMatched && wasMatched:
			sub.enqueue([]Change{{Type: Modified, ID: id, Data: cloneDoc(data)}})
		case !nowMatched && wasMatched:
			delete(sub.matched, id)
			sub.enqueue([]Change{{Type: Removed, ID: id}})
		}
	}
}
