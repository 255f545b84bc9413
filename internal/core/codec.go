// Package core is the synchronization engine: room directory, access
// control, direct pairing, message streaming and presence resolution,
// all running against the document-store adapter.
package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

// Document field names, shared between read and write sides.
const (
	fName       = "name"
	fType       = "type"
	fPassword   = "password"
	fOwnerID    = "ownerId"
	fCategoryID = "categoryId"
	fMembers    = "members"
	fAvatar     = "avatar"
	fCreatedAt  = "createdAt"
	fActiveAt   = "activeAt"
	fOrder      = "order"

	fRoomID       = "roomId"
	fText         = "text"
	fSenderID     = "senderId"
	fSenderName   = "senderName"
	fSenderAvatar = "senderAvatar"
	fSenderEffect = "senderEffect"
	fReply        = "reply"
	fEdited       = "edited"
	fReactions    = "reactions"

	fNickname = "nickname"
	fBio      = "bio"
	fStatus   = "status"
	fEffect   = "effect"
)

// Timestamps are stored as unix milliseconds so they order numerically
// and survive a JSON round-trip.
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(v any) time.Time {
	n, _ := docInt64(v)
	return time.UnixMilli(n).UTC()
}

func docInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

func docString(v any) string {
	s, _ := v.(string)
	return s
}

func docBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func docUserList(v any) []domain.UserID {
	raw, _ := v.([]any)
	out := make([]domain.UserID, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, domain.UserID(s))
		}
	}
	return out
}

func roomToDoc(r *domain.Room) store.Document {
	members := make([]any, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, string(m))
	}
	return store.Document{
		fName:       r.Name,
		fType:       string(r.Type),
		fPassword:   r.Password,
		fOwnerID:    string(r.OwnerID),
		fCategoryID: string(r.CategoryID),
		fMembers:    members,
		fAvatar:     r.Avatar,
		fCreatedAt:  toMillis(r.CreatedAt),
		fActiveAt:   toMillis(r.ActiveAt),
	}
}

func roomFromDoc(id string, doc store.Document) *domain.Room {
	return &domain.Room{
		ID:         domain.RoomID(id),
		Name:       docString(doc[fName]),
		Type:       domain.RoomType(docString(doc[fType])),
		Password:   docString(doc[fPassword]),
		OwnerID:    domain.UserID(docString(doc[fOwnerID])),
		CategoryID: domain.CategoryID(docString(doc[fCategoryID])),
		Members:    docUserList(doc[fMembers]),
		Avatar:     docString(doc[fAvatar]),
		CreatedAt:  fromMillis(doc[fCreatedAt]),
		ActiveAt:   fromMillis(doc[fActiveAt]),
	}
}

func categoryToDoc(c *domain.Category) store.Document {
	return store.Document{
		fName:      c.Name,
		fOrder:     c.Order,
		fCreatedAt: toMillis(c.CreatedAt),
	}
}

func categoryFromDoc(id string, doc store.Document) *domain.Category {
	order, _ := docInt64(doc[fOrder])
	return &domain.Category{
		ID:        domain.CategoryID(id),
		Name:      docString(doc[fName]),
		Order:     order,
		CreatedAt: fromMillis(doc[fCreatedAt]),
	}
}

func messageToDoc(m *domain.Message) store.Document {
	doc := store.Document{
		fRoomID:       string(m.RoomID),
		fText:         m.Text,
		fSenderID:     string(m.SenderID),
		fSenderName:   m.SenderName,
		fSenderAvatar: m.SenderAvatar,
		fSenderEffect: m.SenderEffect,
		fEdited:       m.Edited,
		fReactions:    reactionsToDoc(m.Reactions),
		fCreatedAt:    toMillis(m.CreatedAt),
	}
	if m.Reply != nil {
		doc[fReply] = map[string]any{
			"messageId":  string(m.Reply.MessageID),
			"senderName": m.Reply.SenderName,
			"excerpt":    m.Reply.Excerpt,
		}
	}
	return doc
}

func messageFromDoc(id string, doc store.Document) *domain.Message {
	seq, _ := docInt64(doc[store.SeqField])
	msg := &domain.Message{
		ID:           domain.MessageID(id),
		RoomID:       domain.RoomID(docString(doc[fRoomID])),
		Text:         docString(doc[fText]),
		SenderID:     domain.UserID(docString(doc[fSenderID])),
		SenderName:   docString(doc[fSenderName]),
		SenderAvatar: docString(doc[fSenderAvatar]),
		SenderEffect: docString(doc[fSenderEffect]),
		Edited:       docBool(doc[fEdited]),
		Reactions:    reactionsFromDoc(doc[fReactions]),
		CreatedAt:    fromMillis(doc[fCreatedAt]),
		Seq:          seq,
	}
	if raw, ok := doc[fReply].(map[string]any); ok {
		msg.Reply = &domain.ReplyRef{
			MessageID:  domain.MessageID(docString(raw["messageId"])),
			SenderName: docString(raw["senderName"]),
			Excerpt:    docString(raw["excerpt"]),
		}
	}
	return msg
}

func reactionsToDoc(reactions map[string][]domain.UserID) map[string]any {
	out := make(map[string]any, len(reactions))
	for kind, users := range reactions {
		list := make([]any, 0, len(users))
		for _, u := range users {
			list = append(list, string(u))
		}
		out[kind] = list
	}
	return out
}

func reactionsFromDoc(v any) map[string][]domain.UserID {
	raw, _ := v.(map[string]any)
	out := make(map[string][]domain.UserID, len(raw))
	for kind, users := range raw {
		out[kind] = docUserList(users)
	}
	return out
}

func profileToDoc(p *domain.Profile) store.Document {
	return store.Document{
		fNickname: p.Nickname,
		fAvatar:   p.Avatar,
		fBio:      p.Bio,
		fStatus:   string(p.Status),
		fEffect:   p.Effect,
	}
}

func profileFromDoc(id string, doc store.Document) domain.Profile {
	return domain.Profile{
		ID:       domain.UserID(id),
		Nickname: docString(doc[fNickname]),
		Avatar:   docString(doc[fAvatar]),
		Bio:      docString(doc[fBio]),
		Status:   domain.PresenceStatus(docString(doc[fStatus])),
		Effect:   docString(doc[fEffect]),
	}
}

// storeErr folds adapter failures into the core taxonomy.
func storeErr(err error, kind, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return domain.NotFoundError(kind, id)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
