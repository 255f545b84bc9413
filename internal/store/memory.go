package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is the in-process engine. A single commit lock serializes writes;
// the hub fans committed changes out to subscriptions in commit order.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]Document // collection -> id -> doc
	seq  int64
	hub  *hub
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]Document),
		hub:  newHub(),
	}
}

func (m *Memory) coll(name string) map[string]Document {
	c, ok := m.data[name]
	if !ok {
		c = make(map[string]Document)
		m.data[name] = c
	}
	return c
}

func (m *Memory) put(collection, id string, data Document) Document {
	doc := cloneDoc(data)
	m.seq++
	doc[SeqField] = m.seq
	m.coll(collection)[id] = doc
	return doc
}

func (m *Memory) Create(ctx context.Context, collection string, data Document) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.put(collection, id, data)
	m.hub.publish(collection, id, doc)
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.put(collection, id, data)
	m.hub.publish(collection, id, doc)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.coll(collection)[id]
	if !ok {
		return ErrNotFound
	}
	applyPatch(doc, patch)
	m.hub.publish(collection, id, doc)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.coll(collection)[id]; !ok {
		return ErrNotFound
	}
	delete(m.coll(collection), id)
	m.hub.publish(collection, id, nil)
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.coll(collection)[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(collection, q), nil
}

func (m *Memory) queryLocked(collection string, q Query) []Snapshot {
	out := make([]Snapshot, 0)
	for id, doc := range m.coll(collection) {
		if matches(doc, q) {
			out = append(out, Snapshot{ID: id, Data: cloneDoc(doc)})
		}
	}
	SortSnapshots(out, q)
	return out
}

func (m *Memory) Subscribe(collection string, q Query, fn func([]Change)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	initial := m.queryLocked(collection, q)
	return m.hub.add(collection, q, fn, initial), nil
}

// Apply commits the batch atomically: validation happens up front, then
// every op is applied and published under one hold of the commit lock.
func (m *Memory) Apply(ctx context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if op.Kind == OpUpdate || op.Kind == OpDelete {
			if _, ok := m.coll(op.Collection)[op.ID]; !ok {
				return ErrNotFound
			}
		}
	}
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			doc := m.put(op.Collection, op.ID, op.Data)
			m.hub.publish(op.Collection, op.ID, doc)
		case OpUpdate:
			doc := m.coll(op.Collection)[op.ID]
			applyPatch(doc, op.Data)
			m.hub.publish(op.Collection, op.ID, doc)
		case OpDelete:
			delete(m.coll(op.Collection), op.ID)
			m.hub.publish(op.Collection, op.ID, nil)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
