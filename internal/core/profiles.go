package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

// Profiles is the shared read-side of the users collection. Profile
// lifecycle belongs to flows outside this core; the one write here is
// the session-start bootstrap from the identity hint.
type Profiles struct {
	store store.Store
}

func NewProfiles(st store.Store) *Profiles {
	return &Profiles{store: st}
}

func (p *Profiles) Get(ctx context.Context, id domain.UserID) (domain.Profile, error) {
	doc, err := p.store.Get(ctx, store.Users, string(id))
	if err != nil {
		return domain.Profile{}, storeErr(err, "user", string(id))
	}
	return profileFromDoc(string(id), doc), nil
}

// GetMany resolves ids in one pass; a missing profile degrades to a
// placeholder entry instead of failing the whole lookup.
func (p *Profiles) GetMany(ctx context.Context, ids []domain.UserID) ([]domain.Profile, error) {
	snaps, err := p.store.Query(ctx, store.Users, store.Query{})
	if err != nil {
		return nil, storeErr(err, "users", "")
	}
	byID := make(map[string]store.Document, len(snaps))
	for _, snap := range snaps {
		byID[snap.ID] = snap.Data
	}
	out := make([]domain.Profile, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[string(id)]; ok {
			out = append(out, profileFromDoc(string(id), doc))
		} else {
			out = append(out, domain.PlaceholderProfile(id))
		}
	}
	return out, nil
}

// All returns every known profile, nickname-ordered.
func (p *Profiles) All(ctx context.Context) ([]domain.Profile, error) {
	snaps, err := p.store.Query(ctx, store.Users, store.Query{OrderBy: fNickname})
	if err != nil {
		return nil, storeErr(err, "users", "")
	}
	out := make([]domain.Profile, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, profileFromDoc(snap.ID, snap.Data))
	}
	return out, nil
}

// EnsureProfile creates the users document at session start if the
// identity provider handed us an id we have not seen before.
func (p *Profiles) EnsureProfile(ctx context.Context, id domain.UserID, nameHint string) (domain.Profile, error) {
	prof, err := p.Get(ctx, id)
	if err == nil {
		return prof, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Profile{}, err
	}
	prof = domain.Profile{ID: id, Nickname: nameHint, Status: domain.StatusOnline}
	if prof.Nickname == "" {
		prof.Nickname = string(id)
	}
	if err := p.store.Set(ctx, store.Users, string(id), profileToDoc(&prof)); err != nil {
		return domain.Profile{}, storeErr(err, "user", string(id))
	}
	log.Info().Str("module", "core.profiles").Str("user", string(id)).Msg("profile bootstrapped")
	return prof, nil
}

// SetNickname is the one profile mutation surfaced at this boundary.
func (p *Profiles) SetNickname(ctx context.Context, id domain.UserID, name string) error {
	prof, err := p.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := prof.SetNickname(name); err != nil {
		return err
	}
	return storeErr(p.store.Update(ctx, store.Users, string(id), store.Document{fNickname: prof.Nickname}), "user", string(id))
}
