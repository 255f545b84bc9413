package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const seqKey = "meta/seq"

// Pebble persists documents as JSON values under doc/<collection>/<id>.
// Single-process engine: queries read through pebble, while the same hub
// as the memory engine fans out this process's committed writes.
type Pebble struct {
	mu  sync.Mutex
	db  *pebble.DB
	seq int64
	hub *hub
}

func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open pebble at %s: %v", ErrUnavailable, path, err)
	}
	p := &Pebble{db: db, hub: newHub()}
	if v, closer, err := db.Get([]byte(seqKey)); err == nil {
		p.seq = int64(binary.BigEndian.Uint64(v))
		_ = closer.Close()
	} else if !errors.Is(err, pebble.ErrNotFound) {
		_ = db.Close()
		return nil, fmt.Errorf("%w: read seq: %v", ErrUnavailable, err)
	}
	log.Info().Str("module", "store.pebble").Str("path", path).Int64("seq", p.seq).Msg("opened")
	return p, nil
}

func docKey(collection, id string) []byte {
	return []byte("doc/" + collection + "/" + id)
}

func (p *Pebble) readLocked(collection, id string) (Document, error) {
	v, closer, err := p.db.Get(docKey(collection, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer closer.Close()
	var doc Document
	if err := json.Unmarshal(v, &doc); err != nil {
		return nil, fmt.Errorf("%w: corrupt document %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	return doc, nil
}

// writeLocked stamps the next seq on the document and appends it, together
// with the advanced counter, to the batch.
func (p *Pebble) writeLocked(b *pebble.Batch, collection, id string, data Document) (Document, error) {
	doc := cloneDoc(data)
	p.seq++
	doc[SeqField] = p.seq
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	if err := b.Set(docKey(collection, id), raw, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], uint64(p.seq))
	if err := b.Set([]byte(seqKey), seqBuf[:], nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doc, nil
}

func (p *Pebble) commit(b *pebble.Batch) error {
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Pebble) Create(ctx context.Context, collection string, data Document) (string, error) {
	id := uuid.NewString()
	if err := p.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Pebble) Set(ctx context.Context, collection, id string, data Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.db.NewBatch()
	doc, err := p.writeLocked(b, collection, id, data)
	if err != nil {
		_ = b.Close()
		return err
	}
	if err := p.commit(b); err != nil {
		return err
	}
	p.hub.publish(collection, id, doc)
	return nil
}

func (p *Pebble) Update(ctx context.Context, collection, id string, patch Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.readLocked(collection, id)
	if err != nil {
		return err
	}
	applyPatch(doc, patch)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshal %s/%s: %v", ErrUnavailable, collection, id, err)
	}
	if err := p.db.Set(docKey(collection, id), raw, pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p.hub.publish(collection, id, doc)
	return nil
}

func (p *Pebble) Delete(ctx context.Context, collection, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.readLocked(collection, id); err != nil {
		return err
	}
	if err := p.db.Delete(docKey(collection, id), pebble.Sync); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p.hub.publish(collection, id, nil)
	return nil
}

func (p *Pebble) Get(ctx context.Context, collection, id string) (Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readLocked(collection, id)
}

func (p *Pebble) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queryLocked(collection, q)
}

func (p *Pebble) queryLocked(collection string, q Query) ([]Snapshot, error) {
	prefix := []byte("doc/" + collection + "/")
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer iter.Close()
	out := make([]Snapshot, 0)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var doc Document
		if err := json.Unmarshal(iter.Value(), &doc); err != nil {
			log.Error().Err(err).Str("module", "store.pebble").Str("key", string(iter.Key())).Msg("skipping corrupt document")
			continue
		}
		if matches(doc, q) {
			out = append(out, Snapshot{ID: string(iter.Key()[len(prefix):]), Data: doc})
		}
	}
	SortSnapshots(out, q)
	return out, nil
}

func (p *Pebble) Subscribe(collection string, q Query, fn func([]Change)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	initial, err := p.queryLocked(collection, q)
	if err != nil {
		return nil, err
	}
	return p.hub.add(collection, q, fn, initial), nil
}

func (p *Pebble) Apply(ctx context.Context, ops []Op) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Stage post-images first so a NotFound aborts before anything is written.
	type staged struct {
		op  Op
		doc Document
	}
	plan := make([]staged, 0, len(ops))
	b := p.db.NewBatch()
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			doc, err := p.writeLocked(b, op.Collection, op.ID, op.Data)
			if err != nil {
				_ = b.Close()
				return err
			}
			plan = append(plan, staged{op: op, doc: doc})
		case OpUpdate:
			doc, err := p.readLocked(op.Collection, op.ID)
			if err != nil {
				_ = b.Close()
				return err
			}
			applyPatch(doc, op.Data)
			raw, err := json.Marshal(doc)
			if err != nil {
				_ = b.Close()
				return fmt.Errorf("%w: marshal %s/%s: %v", ErrUnavailable, op.Collection, op.ID, err)
			}
			if err := b.Set(docKey(op.Collection, op.ID), raw, nil); err != nil {
				_ = b.Close()
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			plan = append(plan, staged{op: op, doc: doc})
		case OpDelete:
			if _, err := p.readLocked(op.Collection, op.ID); err != nil {
				_ = b.Close()
				return err
			}
			if err := b.Delete(docKey(op.Collection, op.ID), nil); err != nil {
				_ = b.Close()
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			plan = append(plan, staged{op: op})
		}
	}
	if err := p.commit(b); err != nil {
		return err
	}
	for _, st := range plan {
		p.hub.publish(st.op.Collection, st.op.ID, st.doc)
	}
	return nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
