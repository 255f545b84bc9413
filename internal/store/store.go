// Package store is the document-store adapter the sync core runs against:
// keyed JSON-ish documents per collection, filtered ordered queries, and
// live subscriptions that push incremental change records.
package store

import (
	"context"
	"fmt"
	"sort"
)

// Collections this core uses.
const (
	Users      = "users"
	Rooms      = "rooms"
	Categories = "categories"
	Messages   = "messages"
)

// SeqField is the store-assigned insertion counter present on every document.
const SeqField = "_seq"

// Document is a flat field map. Values are strings, int64/float64, bools,
// []any and nested maps, as after a JSON round-trip.
type Document = map[string]any

type Snapshot struct {
	ID   string
	Data Document
}

type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

// Change is one incremental record pushed to a subscription. Data is nil
// for Removed.
type Change struct {
	Type ChangeType
	ID   string
	Data Document
}

// Filter is a single equality constraint on a top-level field.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Filters []Filter
	OrderBy string // empty means insertion order
	Desc    bool
}

// OpKind enumerates batched write operations.
type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpDelete
)

// Op is one entry of an atomic multi-document batch.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Data       Document // full doc for OpSet, merge patch for OpUpdate
}

// Store is the minimal capability surface the sync core needs from the
// backing store. Mutations are all-or-nothing per call; Apply is
// all-or-nothing across the whole batch.
type Store interface {
	Create(ctx context.Context, collection string, data Document) (string, error)
	Set(ctx context.Context, collection, id string, data Document) error
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)

	// Subscribe delivers the current matching set as one Added batch, then
	// incremental change batches in commit order. The returned cancel stops
	// delivery; anything observed after cancel is dropped, not delivered.
	Subscribe(collection string, q Query, fn func([]Change)) (cancel func(), err error)

	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// ErrNotFound is returned by Get/Update/Delete for an absent document.
// ErrUnavailable wraps transient backend failures; callers may retry.
var (
	ErrNotFound    = fmt.Errorf("store: document not found")
	ErrUnavailable = fmt.Errorf("store: backend unavailable")
)

// arrayUnion / arrayRemove are patch sentinels giving idempotent set
// semantics on list fields under the store's per-document atomicity.
type arrayUnion struct{ values []any }
type arrayRemove struct{ values []any }

func ArrayUnion(values ...any) any  { return arrayUnion{values: values} }
func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

// applyPatch merges patch into doc in place, resolving sentinels.
func applyPatch(doc, patch Document) {
	for k, v := range patch {
		switch sv := v.(type) {
		case arrayUnion:
			cur, _ := doc[k].([]any)
			for _, add := range sv.values {
				if !containsValue(cur, add) {
					cur = append(cur, add)
				}
			}
			doc[k] = cur
		case arrayRemove:
			cur, _ := doc[k].([]any)
			kept := make([]any, 0, len(cur))
			for _, have := range cur {
				if !containsValue(sv.values, have) {
					kept = append(kept, have)
				}
			}
			doc[k] = kept
		default:
			doc[k] = v
		}
	}
}

func containsValue(list []any, v any) bool {
	for _, have := range list {
		if scalarEqual(have, v) {
			return true
		}
	}
	return false
}

// scalarEqual compares field values loosely enough to survive a JSON
// round-trip (int64 vs float64).
func scalarEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func matches(doc Document, q Query) bool {
	for _, f := range q.Filters {
		if !scalarEqual(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// lessDoc orders two snapshots under q; ties always fall back to the
// store-assigned insertion counter.
func lessDoc(a, b Snapshot, q Query) bool {
	if q.OrderBy != "" {
		av, bv := a.Data[q.OrderBy], b.Data[q.OrderBy]
		if c := compareValues(av, bv); c != 0 {
			if q.Desc {
				return c > 0
			}
			return c < 0
		}
	}
	as, _ := toFloat(a.Data[SeqField])
	bs, _ := toFloat(b.Data[SeqField])
	if q.Desc && q.OrderBy != "" {
		return as > bs
	}
	return as < bs
}

func compareValues(a, b any) int {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
	}
	return 0
}

// SortSnapshots orders snapshots under q, the same way queries and
// subscriptions do.
func SortSnapshots(snaps []Snapshot, q Query) {
	sort.SliceStable(snaps, func(i, j int) bool { return lessDoc(snaps[i], snaps[j], q) })
}

// cloneDoc copies one level of nesting deep enough that subscribers cannot
// alias store-owned state.
func cloneDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		switch tv := v.(type) {
		case []any:
			out[k] = append([]any(nil), tv...)
		case map[string]any:
			out[k] = cloneDoc(tv)
		default:
			out[k] = v
		}
	}
	return out
}
