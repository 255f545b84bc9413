package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

// RoomSpec is the caller-provided shape of a new room.
type RoomSpec struct {
	Name       string
	Type       domain.RoomType
	Password   string
	CategoryID domain.CategoryID
	Avatar     string
}

// RoomDirectory owns the rooms and categories collections. It performs no
// ownership checks itself; callers authorize through AccessController first.
type RoomDirectory struct {
	store store.Store
	now   func() time.Time
}

func NewRoomDirectory(st store.Store) *RoomDirectory {
	return &RoomDirectory{store: st, now: time.Now}
}

// CreateRoom validates the spec and persists a room whose member set is
// just the owner.
func (d *RoomDirectory) CreateRoom(ctx context.Context, spec RoomSpec, owner domain.UserID) (*domain.Room, error) {
	if spec.Name == "" {
		return nil, domain.ValidationError("room name empty")
	}
	if spec.Type == "" {
		spec.Type = domain.RoomPublic
	}
	if spec.Type == domain.RoomPrivate && spec.Password == "" {
		return nil, domain.ValidationError("private room requires a password")
	}
	// Timestamps persist at millisecond precision; truncate up front so the
	// returned entity equals its read-back.
	now := d.now().UTC().Truncate(time.Millisecond)
	room := &domain.Room{
		Name:       spec.Name,
		Type:       spec.Type,
		Password:   spec.Password,
		OwnerID:    owner,
		CategoryID: spec.CategoryID,
		Members:    []domain.UserID{owner},
		Avatar:     spec.Avatar,
		CreatedAt:  now,
		ActiveAt:   now,
	}
	id, err := d.store.Create(ctx, store.Rooms, roomToDoc(room))
	if err != nil {
		return nil, storeErr(err, "room", "")
	}
	room.ID = domain.RoomID(id)
	log.Info().Str("module", "core.directory").Str("room", id).Str("owner", string(owner)).Msg("room created")
	return room, nil
}

// EnsureRoom writes a room under a fixed id unless it already exists. Used
// for the reserved general room, per-user saved rooms and direct rooms.
func (d *RoomDirectory) EnsureRoom(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	if existing, err := d.GetRoom(ctx, room.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	now := d.now().UTC().Truncate(time.Millisecond)
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.ActiveAt = now
	// Last-writer-wins on a create race: both racers derive identical
	// initial content, so Set instead of a guarded insert is safe.
	if err := d.store.Set(ctx, store.Rooms, string(room.ID), roomToDoc(room)); err != nil {
		return nil, storeErr(err, "room", string(room.ID))
	}
	return room, nil
}

// EnsureGeneral bootstraps the reserved global room.
func (d *RoomDirectory) EnsureGeneral(ctx context.Context) error {
	_, err := d.EnsureRoom(ctx, &domain.Room{
		ID:   domain.GeneralRoomID,
		Name: "General",
		Type: domain.RoomPublic,
	})
	return err
}

// EnsureSaved bootstraps a user's own saved-notes room: the degenerate
// single-member direct room under the user's own id.
func (d *RoomDirectory) EnsureSaved(ctx context.Context, user domain.UserID) error {
	_, err := d.EnsureRoom(ctx, &domain.Room{
		ID:      domain.SavedRoomID(user),
		Name:    domain.SavedRoomName,
		Type:    domain.RoomDirect,
		Members: []domain.UserID{user},
	})
	return err
}

func (d *RoomDirectory) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	doc, err := d.store.Get(ctx, store.Rooms, string(id))
	if err != nil {
		return nil, storeErr(err, "room", string(id))
	}
	return roomFromDoc(string(id), doc), nil
}

// RoomPatch updates only the fields set here; nil pointers are left alone.
type RoomPatch struct {
	Name       *string
	Password   *string
	CategoryID *domain.CategoryID
	Avatar     *string
}

// UpdateRoom applies the patch all-or-nothing. No ownership check at this
// layer; AccessController.CanModifyRoom gates the call.
func (d *RoomDirectory) UpdateRoom(ctx context.Context, id domain.RoomID, patch RoomPatch) error {
	doc := store.Document{}
	if patch.Name != nil {
		if *patch.Name == "" {
			return domain.ValidationError("room name empty")
		}
		doc[fName] = *patch.Name
	}
	if patch.Password != nil {
		doc[fPassword] = *patch.Password
	}
	if patch.CategoryID != nil {
		doc[fCategoryID] = string(*patch.CategoryID)
	}
	if patch.Avatar != nil {
		doc[fAvatar] = *patch.Avatar
	}
	if len(doc) == 0 {
		return nil
	}
	return storeErr(d.store.Update(ctx, store.Rooms, string(id), doc), "room", string(id))
}

func (d *RoomDirectory) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	return storeErr(d.store.Delete(ctx, store.Rooms, string(id)), "room", string(id))
}

// TouchRoom bumps last-activity, best effort.
func (d *RoomDirectory) TouchRoom(ctx context.Context, id domain.RoomID) {
	if err := d.store.Update(ctx, store.Rooms, string(id), store.Document{fActiveAt: toMillis(d.now().UTC())}); err != nil {
		log.Warn().Err(err).Str("module", "core.directory").Str("room", string(id)).Msg("touch failed")
	}
}

// Join adds the user to the member list. Set-union semantics make it
// idempotent and safe to retry.
func (d *RoomDirectory) Join(ctx context.Context, roomID domain.RoomID, user domain.UserID) error {
	err := d.store.Update(ctx, store.Rooms, string(roomID), store.Document{
		fMembers: store.ArrayUnion(string(user)),
	})
	return storeErr(err, "room", string(roomID))
}

// Leave removes the user from the member list, idempotently.
func (d *RoomDirectory) Leave(ctx context.Context, roomID domain.RoomID, user domain.UserID) error {
	err := d.store.Update(ctx, store.Rooms, string(roomID), store.Document{
		fMembers: store.ArrayRemove(string(user)),
	})
	return storeErr(err, "room", string(roomID))
}

// CreateCategory appends a category after the current highest ordering key.
func (d *RoomDirectory) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if name == "" {
		return nil, domain.ValidationError("category name empty")
	}
	snaps, err := d.store.Query(ctx, store.Categories, store.Query{OrderBy: fOrder, Desc: true})
	if err != nil {
		return nil, storeErr(err, "categories", "")
	}
	var next int64 = 1
	if len(snaps) > 0 {
		if top, ok := docInt64(snaps[0].Data[fOrder]); ok {
			next = top + 1
		}
	}
	cat := &domain.Category{Name: name, Order: next, CreatedAt: d.now().UTC().Truncate(time.Millisecond)}
	id, err := d.store.Create(ctx, store.Categories, categoryToDoc(cat))
	if err != nil {
		return nil, storeErr(err, "category", "")
	}
	cat.ID = domain.CategoryID(id)
	return cat, nil
}

// CategoryPatch mirrors RoomPatch for categories.
type CategoryPatch struct {
	Name  *string
	Order *int64
}

func (d *RoomDirectory) UpdateCategory(ctx context.Context, id domain.CategoryID, patch CategoryPatch) error {
	doc := store.Document{}
	if patch.Name != nil {
		if *patch.Name == "" {
			return domain.ValidationError("category name empty")
		}
		doc[fName] = *patch.Name
	}
	if patch.Order != nil {
		doc[fOrder] = *patch.Order
	}
	if len(doc) == 0 {
		return nil
	}
	return storeErr(d.store.Update(ctx, store.Categories, string(id), doc), "category", string(id))
}

// DeleteCategory reassigns the category's rooms to the uncategorized bucket
// and removes the category, as one atomic batch. Partial application must
// never leave a room pointing at a deleted category.
func (d *RoomDirectory) DeleteCategory(ctx context.Context, id domain.CategoryID) error {
	rooms, err := d.store.Query(ctx, store.Rooms, store.Query{
		Filters: []store.Filter{{Field: fCategoryID, Value: string(id)}},
	})
	if err != nil {
		return storeErr(err, "rooms", "")
	}
	ops := make([]store.Op, 0, len(rooms)+1)
	for _, snap := range rooms {
		ops = append(ops, store.Op{
			Kind:       store.OpUpdate,
			Collection: store.Rooms,
			ID:         snap.ID,
			Data:       store.Document{fCategoryID: ""},
		})
	}
	ops = append(ops, store.Op{Kind: store.OpDelete, Collection: store.Categories, ID: string(id)})
	if err := d.store.Apply(ctx, ops); err != nil {
		return storeErr(err, "category", string(id))
	}
	log.Info().Str("module", "core.directory").Str("category", string(id)).Int("reassigned", len(rooms)).Msg("category deleted")
	return nil
}

// SubscribeRooms redelivers the full room collection, creation-ordered, on
// every change. Snapshot semantics, not diffs.
func (d *RoomDirectory) SubscribeRooms(fn func([]*domain.Room)) (func(), error) {
	return d.subscribeSnapshot(store.Rooms, store.Query{OrderBy: fCreatedAt}, func(docs []store.Snapshot) {
		out := make([]*domain.Room, 0, len(docs))
		for _, snap := range docs {
			out = append(out, roomFromDoc(snap.ID, snap.Data))
		}
		fn(out)
	})
}

// SubscribeCategories redelivers the full category collection ordered by
// the ordering key.
func (d *RoomDirectory) SubscribeCategories(fn func([]*domain.Category)) (func(), error) {
	return d.subscribeSnapshot(store.Categories, store.Query{OrderBy: fOrder}, func(docs []store.Snapshot) {
		out := make([]*domain.Category, 0, len(docs))
		for _, snap := range docs {
			out = append(out, categoryFromDoc(snap.ID, snap.Data))
		}
		fn(out)
	})
}

// subscribeSnapshot folds the store's change records back into a full
// ordered collection per delivery. The fold runs on the subscription's
// serial worker, so no locking is needed around current.
func (d *RoomDirectory) subscribeSnapshot(collection string, q store.Query, fn func([]store.Snapshot)) (func(), error) {
	current := make(map[string]store.Document)
	cancel, err := d.store.Subscribe(collection, q, func(changes []store.Change) {
		for _, ch := range changes {
			switch ch.Type {
			case store.Removed:
				delete(current, ch.ID)
			default:
				current[ch.ID] = ch.Data
			}
		}
		snaps := make([]store.Snapshot, 0, len(current))
		for id, doc := range current {
			snaps = append(snaps, store.Snapshot{ID: id, Data: doc})
		}
		store.SortSnapshots(snaps, q)
		fn(snaps)
	})
	if err != nil {
		return nil, storeErr(err, collection, "")
	}
	return cancel, nil
}
