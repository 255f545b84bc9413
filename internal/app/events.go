package app

import (
	"sync"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

// Topic is a typed publish/subscribe channel, one value type per concern.
type Topic[T any] struct {
	mu   sync.RWMutex
	subs map[int]func(T)
	next int
}

func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[int]func(T))}
}

func (t *Topic[T]) Subscribe(fn func(T)) (cancel func()) {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	fns := make([]func(T), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}

// RoomEntered announces a completed room switch.
type RoomEntered struct {
	Room    *domain.Room
	Members []domain.Profile
}

// MediaItem is an inline image reference extracted from message text.
type MediaItem struct {
	RoomID    domain.RoomID
	MessageID domain.MessageID
	URL       string
}

// SessionEvents groups the per-session topics the presentation layer
// consumes.
type SessionEvents struct {
	Entered    *Topic[RoomEntered]
	Rooms      *Topic[[]*domain.Room]
	Categories *Topic[[]*domain.Category]
	Messages   *Topic[[]core.MessageEvent]
	Members    *Topic[[]domain.Profile]
	Media      *Topic[MediaItem]
}

func NewSessionEvents() *SessionEvents {
	return &SessionEvents{
		Entered:    NewTopic[RoomEntered](),
		Rooms:      NewTopic[[]*domain.Room](),
		Categories: NewTopic[[]*domain.Category](),
		Messages:   NewTopic[[]core.MessageEvent](),
		Members:    NewTopic[[]domain.Profile](),
		Media:      NewTopic[MediaItem](),
	}
}
