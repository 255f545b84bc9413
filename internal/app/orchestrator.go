// Package app wires the sync core into per-client sessions and typed
// event topics.
package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

// Orchestrator owns the core components and opens sessions against them.
type Orchestrator struct {
	Store     store.Store
	Profiles  *core.Profiles
	Directory *core.RoomDirectory
	Access    *core.AccessController
	Pairing   *core.DirectPairing
	Stream    *core.MessageStream
	Presence  *core.PresenceAggregator
	Registry  *Registry
}

func NewOrchestrator(st store.Store) *Orchestrator {
	profiles := core.NewProfiles(st)
	directory := core.NewRoomDirectory(st)
	return &Orchestrator{
		Store:     st,
		Profiles:  profiles,
		Directory: directory,
		Access:    core.NewAccessController(directory),
		Pairing:   core.NewDirectPairing(directory, profiles),
		Stream:    core.NewMessageStream(st, directory),
		Presence:  core.NewPresenceAggregator(profiles),
		Registry:  NewRegistry(),
	}
}

// Bootstrap makes sure the reserved global room exists.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	return o.Directory.EnsureGeneral(ctx)
}

// OpenSession resolves the identity hint into a profile, guarantees the
// user's saved room, and hands back a live session.
func (o *Orchestrator) OpenSession(ctx context.Context, user domain.UserID, nameHint string) (*Session, error) {
	profile, err := o.Profiles.EnsureProfile(ctx, user, nameHint)
	if err != nil {
		return nil, err
	}
	if err := o.Directory.EnsureSaved(ctx, user); err != nil {
		return nil, err
	}
	s := newSession(o, profile)
	if err := s.start(); err != nil {
		s.Close()
		return nil, err
	}
	log.Info().Str("module", "app.orchestrator").Str("user", string(user)).Msg("session opened")
	return s, nil
}
