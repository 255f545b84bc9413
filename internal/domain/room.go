package domain

import (
	"sort"
	"strings"
	"time"
)

type (
	RoomID     string
	CategoryID string
)

// GeneralRoomID is the reserved id of the global room every user may enter.
const GeneralRoomID RoomID = "general"

// DirectSeparator joins the two sorted user ids of a direct room.
const DirectSeparator = "__"

type RoomType string

const (
	RoomPublic  RoomType = "public"
	RoomPrivate RoomType = "private"
	RoomDirect  RoomType = "dm"
)

type Room struct {
	ID         RoomID
	Name       string
	Type       RoomType
	Password   string
	OwnerID    UserID     // empty for general/dm rooms
	CategoryID CategoryID // empty means uncategorized
	Members    []UserID
	Avatar     string
	CreatedAt  time.Time
	ActiveAt   time.Time
}

// SavedRoomName is the fixed display label of a user's saved-notes room,
// also used for the direct-room counterpart of a self-chat.
const SavedRoomName = "Saved"

// SavedRoomID is the per-user "saved notes" room; its id is the user's own id.
func SavedRoomID(u UserID) RoomID { return RoomID(u) }

// IsSavedFor reports whether the room is the given user's own saved room.
func (r *Room) IsSavedFor(u UserID) bool { return r.ID == SavedRoomID(u) }

// HasMember is a linear scan; member sets are small.
func (r *Room) HasMember(u UserID) bool {
	for _, m := range r.Members {
		if m == u {
			return true
		}
	}
	return false
}

// DirectRoomID derives the canonical id for an unordered user pair: the two
// ids sorted lexicographically and joined with a fixed separator, so both
// initiating directions resolve to the same room.
func DirectRoomID(a, b UserID) RoomID {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return RoomID(strings.Join(pair, DirectSeparator))
}

type Category struct {
	ID        CategoryID
	Name      string
	Order     int64
	CreatedAt time.Time
}
