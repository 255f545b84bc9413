package core

import (
	"context"
	"testing"
	"time"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

type env struct {
	store     *store.Memory
	profiles  *Profiles
	directory *RoomDirectory
	access    *AccessController
	pairing   *DirectPairing
	stream    *MessageStream
	presence  *PresenceAggregator
}

func newEnv() *env {
	st := store.NewMemory()
	profiles := NewProfiles(st)
	directory := NewRoomDirectory(st)
	return &env{
		store:     st,
		profiles:  profiles,
		directory: directory,
		access:    NewAccessController(directory),
		pairing:   NewDirectPairing(directory, profiles),
		stream:    NewMessageStream(st, directory),
		presence:  NewPresenceAggregator(profiles),
	}
}

func (e *env) seedProfile(t *testing.T, id domain.UserID, nickname string) domain.Profile {
	t.Helper()
	prof, err := e.profiles.EnsureProfile(context.Background(), id, nickname)
	if err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
	return prof
}

func recvEvents(t *testing.T, ch <-chan []MessageEvent) []MessageEvent {
	t.Helper()
	select {
	case events := <-ch:
		return events
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message events")
		return nil
	}
}
