package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

// DirectPairing derives the single canonical room for an unordered pair of
// users and creates it lazily. It holds no state of its own.
type DirectPairing struct {
	directory *RoomDirectory
	profiles  *Profiles
}

func NewDirectPairing(dir *RoomDirectory, profiles *Profiles) *DirectPairing {
	return &DirectPairing{directory: dir, profiles: profiles}
}

// GetOrCreate resolves the direct room between a and b, creating it on
// first use. Both initiating directions land on the same id, and a create
// race is benign: both racers write identical initial content under the
// same id, so the second write degenerates to "already exists".
func (p *DirectPairing) GetOrCreate(ctx context.Context, a, b domain.UserID) (*domain.Room, error) {
	if a == b {
		// Messaging yourself lands in your saved-notes room, the
		// degenerate single-member direct room.
		if err := p.directory.EnsureSaved(ctx, a); err != nil {
			return nil, err
		}
		return p.directory.GetRoom(ctx, domain.SavedRoomID(a))
	}
	id := domain.DirectRoomID(a, b)
	if room, err := p.directory.GetRoom(ctx, id); err == nil {
		return room, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Display name and avatar are a snapshot of the counterpart's profile
	// at creation time; later profile edits do not flow back.
	prof, err := p.profiles.Get(ctx, b)
	if errors.Is(err, domain.ErrNotFound) {
		prof = domain.PlaceholderProfile(b)
	} else if err != nil {
		return nil, err
	}

	room, err := p.directory.EnsureRoom(ctx, &domain.Room{
		ID:      id,
		Name:    prof.Nickname,
		Type:    domain.RoomDirect,
		Members: []domain.UserID{a, b},
		Avatar:  prof.Avatar,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "core.pairing").Str("room", string(id)).Msg("direct room ready")
	return room, nil
}
