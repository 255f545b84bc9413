package core

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

// Entry is the outcome of an entry resolution.
type Entry int

const (
	EntryDenied Entry = iota
	EntryGranted
	EntryPassword
)

// AccessController decides whether a user may enter a room outright, must
// supply a password, or is denied, and drives auto-join on success.
type AccessController struct {
	directory *RoomDirectory
}

func NewAccessController(dir *RoomDirectory) *AccessController {
	return &AccessController{directory: dir}
}

// ResolveEntry applies the entry rules in order: the global room and the
// user's own saved room are always open; a direct room is open to its
// participants only; public rooms are open; a private room is open to its
// owner and members, password-gated otherwise.
func (a *AccessController) ResolveEntry(room *domain.Room, user domain.UserID) Entry {
	if room.ID == domain.GeneralRoomID || room.IsSavedFor(user) {
		return EntryGranted
	}
	if room.Type == domain.RoomDirect {
		// The member set of a direct room is fixed at creation; a third
		// party guessing the id must not be able to enter or join.
		if room.HasMember(user) {
			return EntryGranted
		}
		return EntryDenied
	}
	if room.Type != domain.RoomPrivate {
		return EntryGranted
	}
	if room.OwnerID == user || room.HasMember(user) {
		return EntryGranted
	}
	return EntryPassword
}

// Enter authorizes the user and, on success, auto-joins them before any
// presence or message subscription is established, so membership is
// consistent with active viewing. A wrong password surfaces the same way
// as a failed membership check.
func (a *AccessController) Enter(ctx context.Context, room *domain.Room, user domain.UserID, password string) error {
	switch a.ResolveEntry(room, user) {
	case EntryPassword:
		if password != room.Password {
			log.Warn().Str("module", "core.access").Str("room", string(room.ID)).Str("user", string(user)).Msg("entry rejected")
			return domain.AuthorizationError("room entry rejected")
		}
	case EntryDenied:
		return domain.AuthorizationError("room entry rejected")
	}
	if room.ID == domain.GeneralRoomID || room.IsSavedFor(user) || room.HasMember(user) {
		return nil
	}
	return a.directory.Join(ctx, room.ID, user)
}

// CanModifyRoom gates rename/avatar/category/delete mutations: only the
// owner may modify a room, and ownerless rooms (general, direct) cannot be
// modified at all.
func (a *AccessController) CanModifyRoom(room *domain.Room, user domain.UserID) error {
	if room.OwnerID == "" || room.OwnerID != user {
		return domain.AuthorizationError("not the room owner")
	}
	return nil
}
