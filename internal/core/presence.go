package core

import (
	"context"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

// PresenceAggregator resolves the member list to show for a room. It holds
// no state of its own; it is a pure derivation over the directory and the
// profile store.
type PresenceAggregator struct {
	profiles *Profiles
}

func NewPresenceAggregator(profiles *Profiles) *PresenceAggregator {
	return &PresenceAggregator{profiles: profiles}
}

// ResolveMembers returns the profiles to display: every known user for the
// global room, just the viewer for their saved room, the explicit member
// set otherwise. Missing profiles degrade to placeholders.
func (p *PresenceAggregator) ResolveMembers(ctx context.Context, room *domain.Room, viewer domain.UserID) ([]domain.Profile, error) {
	switch {
	case room.ID == domain.GeneralRoomID:
		return p.profiles.All(ctx)
	case room.IsSavedFor(viewer):
		return p.profiles.GetMany(ctx, []domain.UserID{viewer})
	}
	return p.profiles.GetMany(ctx, room.Members)
}

// Counterpart resolves the "other party" display identity of a direct
// room: the member who is not the viewer, or the fixed saved label for the
// degenerate self-chat.
func (p *PresenceAggregator) Counterpart(ctx context.Context, room *domain.Room, viewer domain.UserID) (domain.Profile, error) {
	for _, m := range room.Members {
		if m != viewer {
			prof, err := p.profiles.Get(ctx, m)
			if err == nil {
				return prof, nil
			}
			return domain.PlaceholderProfile(m), nil
		}
	}
	return domain.Profile{ID: viewer, Nickname: domain.SavedRoomName}, nil
}
