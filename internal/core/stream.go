package core

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

// MessageEvent is one incremental record of a room's live feed. Message is
// nil for Removed.
type MessageEvent struct {
	Type    store.ChangeType
	ID      domain.MessageID
	Message *domain.Message
}

// SendContext carries everything Send denormalizes into the stored message.
type SendContext struct {
	RoomID domain.RoomID
	Sender domain.Profile
	Reply  *domain.ReplyRef
}

// MessageStream owns the messages collection: the per-room live feed plus
// sending, editing, deleting and reacting.
type MessageStream struct {
	store     store.Store
	directory *RoomDirectory
	now       func() time.Time
}

func NewMessageStream(st store.Store, dir *RoomDirectory) *MessageStream {
	return &MessageStream{store: st, directory: dir, now: time.Now}
}

// Subscribe opens the live feed for a room. The first callback invocation
// is the full ordered initial batch (all Added); later invocations carry
// incremental changes in the store's causal order. The returned cancel
// stops delivery; events observed after cancel are dropped.
func (s *MessageStream) Subscribe(roomID domain.RoomID, fn func([]MessageEvent)) (func(), error) {
	q := store.Query{
		Filters: []store.Filter{{Field: fRoomID, Value: string(roomID)}},
		OrderBy: fCreatedAt,
	}
	cancel, err := s.store.Subscribe(store.Messages, q, func(changes []store.Change) {
		events := make([]MessageEvent, 0, len(changes))
		for _, ch := range changes {
			ev := MessageEvent{Type: ch.Type, ID: domain.MessageID(ch.ID)}
			if ch.Type != store.Removed {
				ev.Message = messageFromDoc(ch.ID, ch.Data)
			}
			events = append(events, ev)
		}
		fn(events)
	})
	if err != nil {
		return nil, storeErr(err, "messages", string(roomID))
	}
	return cancel, nil
}

// Send persists a new message carrying the sender snapshot taken now.
// Empty or whitespace-only text is a no-op.
func (s *MessageStream) Send(ctx context.Context, text string, sctx SendContext) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	msg := &domain.Message{
		RoomID:       sctx.RoomID,
		Text:         text,
		SenderID:     sctx.Sender.ID,
		SenderName:   sctx.Sender.Nickname,
		SenderAvatar: sctx.Sender.Avatar,
		SenderEffect: sctx.Sender.Effect,
		Reply:        sctx.Reply,
		Reactions:    map[string][]domain.UserID{},
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	id, err := s.store.Create(ctx, store.Messages, messageToDoc(msg))
	if err != nil {
		return nil, storeErr(err, "message", "")
	}
	msg.ID = domain.MessageID(id)
	s.directory.TouchRoom(ctx, sctx.RoomID)
	log.Debug().Str("module", "core.stream").Str("room", string(sctx.RoomID)).Str("message", id).Msg("sent")
	return msg, nil
}

func (s *MessageStream) Get(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	doc, err := s.store.Get(ctx, store.Messages, string(id))
	if err != nil {
		return nil, storeErr(err, "message", string(id))
	}
	return messageFromDoc(string(id), doc), nil
}

// Edit rewrites the text and sets the edited flag. Only the sender may
// edit.
func (s *MessageStream) Edit(ctx context.Context, id domain.MessageID, text string, caller domain.UserID) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ValidationError("message text empty")
	}
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != caller {
		return domain.AuthorizationError("not the message sender")
	}
	err = s.store.Update(ctx, store.Messages, string(id), store.Document{
		fText:   text,
		fEdited: true,
	})
	return storeErr(err, "message", string(id))
}

// Delete is terminal; the removal propagates to every live subscriber.
func (s *MessageStream) Delete(ctx context.Context, id domain.MessageID, caller domain.UserID) error {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != caller {
		return domain.AuthorizationError("not the message sender")
	}
	return storeErr(s.store.Delete(ctx, store.Messages, string(id)), "message", string(id))
}

// React toggles the user's membership in the reaction kind's reactor set.
func (s *MessageStream) React(ctx context.Context, id domain.MessageID, kind string, user domain.UserID) error {
	if kind == "" {
		return domain.ValidationError("reaction kind empty")
	}
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.HasReactor(kind, user) {
		kept := msg.Reactions[kind][:0:0]
		for _, u := range msg.Reactions[kind] {
			if u != user {
				kept = append(kept, u)
			}
		}
		msg.Reactions[kind] = kept
		if len(kept) == 0 {
			delete(msg.Reactions, kind)
		}
	} else {
		if msg.Reactions == nil {
			msg.Reactions = map[string][]domain.UserID{}
		}
		msg.Reactions[kind] = append(msg.Reactions[kind], user)
	}
	err = s.store.Update(ctx, store.Messages, string(id), store.Document{
		fReactions: reactionsToDoc(msg.Reactions),
	})
	return storeErr(err, "message", string(id))
}

// History returns the current ordered batch without subscribing.
func (s *MessageStream) History(ctx context.Context, roomID domain.RoomID) ([]*domain.Message, error) {
	snaps, err := s.store.Query(ctx, store.Messages, store.Query{
		Filters: []store.Filter{{Field: fRoomID, Value: string(roomID)}},
		OrderBy: fCreatedAt,
	})
	if err != nil {
		return nil, storeErr(err, "messages", string(roomID))
	}
	out := make([]*domain.Message, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, messageFromDoc(snap.ID, snap.Data))
	}
	return out, nil
}
