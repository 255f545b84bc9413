package core

import (
	"context"
	"errors"
	"testing"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

func TestAccessPrivateRoomScenario(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedProfile(t, "owner", "Owner")
	e.seedProfile(t, "guest", "Guest")

	room, err := e.directory.CreateRoom(ctx, RoomSpec{
		Name:     "R",
		Type:     domain.RoomPrivate,
		Password: "ab12",
	}, "owner")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// Non-member without the password is rejected.
	if err := e.access.Enter(ctx, room, "guest", ""); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("empty password: err = %v, want ErrAuthorization", err)
	}
	if err := e.access.Enter(ctx, room, "guest", "wrong"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("wrong password: err = %v, want ErrAuthorization", err)
	}

	// A failed attempt must not have joined the guest.
	fresh, err := e.directory.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if fresh.HasMember("guest") {
		t.Fatal("rejected guest ended up in the member list")
	}

	// Correct password grants entry and auto-joins.
	if err := e.access.Enter(ctx, fresh, "guest", "ab12"); err != nil {
		t.Fatalf("correct password: %v", err)
	}
	fresh, err = e.directory.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom after entry: %v", err)
	}
	if !fresh.HasMember("guest") {
		t.Fatal("entry did not auto-join the guest")
	}

	// Once a member, no password is needed.
	if err := e.access.Enter(ctx, fresh, "guest", ""); err != nil {
		t.Fatalf("member re-entry: %v", err)
	}

	// The owner never needs the password.
	if err := e.access.Enter(ctx, fresh, "owner", ""); err != nil {
		t.Fatalf("owner entry: %v", err)
	}
}

func TestAccessJoinIdempotent(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedProfile(t, "owner", "Owner")
	e.seedProfile(t, "guest", "Guest")

	room, err := e.directory.CreateRoom(ctx, RoomSpec{Name: "open"}, "owner")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for i := 0; i < 3; i++ {
		fresh, err := e.directory.GetRoom(ctx, room.ID)
		if err != nil {
			t.Fatalf("GetRoom: %v", err)
		}
		if err := e.access.Enter(ctx, fresh, "guest", ""); err != nil {
			t.Fatalf("Enter #%d: %v", i, err)
		}
	}
	fresh, err := e.directory.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got := len(fresh.Members); got != 2 {
		t.Fatalf("members = %v, want exactly owner and guest", fresh.Members)
	}
}

func TestAccessAlwaysOpenRooms(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	if err := e.directory.EnsureGeneral(ctx); err != nil {
		t.Fatalf("EnsureGeneral: %v", err)
	}
	if err := e.directory.EnsureSaved(ctx, "alice"); err != nil {
		t.Fatalf("EnsureSaved: %v", err)
	}

	general, err := e.directory.GetRoom(ctx, domain.GeneralRoomID)
	if err != nil {
		t.Fatalf("GetRoom(general): %v", err)
	}
	if got := e.access.ResolveEntry(general, "alice"); got != EntryGranted {
		t.Fatalf("general entry = %v, want granted", got)
	}

	saved, err := e.directory.GetRoom(ctx, domain.SavedRoomID("alice"))
	if err != nil {
		t.Fatalf("GetRoom(saved): %v", err)
	}
	if got := e.access.ResolveEntry(saved, "alice"); got != EntryGranted {
		t.Fatalf("own saved entry = %v, want granted", got)
	}
}

func TestAccessDirectRoomClosedToOutsiders(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	e.seedProfile(t, "alice", "Alice")
	e.seedProfile(t, "bob", "Bob")
	e.seedProfile(t, "carol", "Carol")

	dm, err := e.pairing.GetOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if got := e.access.ResolveEntry(dm, "carol"); got != EntryDenied {
		t.Fatalf("outsider entry = %v, want denied", got)
	}
	if err := e.access.Enter(ctx, dm, "carol", ""); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("outsider Enter: err = %v, want ErrAuthorization", err)
	}

	fresh, err := e.directory.GetRoom(ctx, dm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if fresh.HasMember("carol") || len(fresh.Members) != 2 {
		t.Fatalf("members after rejected entry = %v, want the fixed pair", fresh.Members)
	}

	// Participants still enter freely.
	if err := e.access.Enter(ctx, fresh, "alice", ""); err != nil {
		t.Fatalf("participant Enter: %v", err)
	}
	if err := e.access.Enter(ctx, fresh, "bob", ""); err != nil {
		t.Fatalf("participant Enter: %v", err)
	}
}

func TestAccessCanModifyRoom(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	owned, err := e.directory.CreateRoom(ctx, RoomSpec{Name: "mine"}, "owner")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := e.access.CanModifyRoom(owned, "owner"); err != nil {
		t.Fatalf("owner modify: %v", err)
	}
	if err := e.access.CanModifyRoom(owned, "guest"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("non-owner modify: err = %v, want ErrAuthorization", err)
	}

	if err := e.directory.EnsureGeneral(ctx); err != nil {
		t.Fatalf("EnsureGeneral: %v", err)
	}
	general, err := e.directory.GetRoom(ctx, domain.GeneralRoomID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if err := e.access.CanModifyRoom(general, "owner"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("ownerless modify: err = %v, want ErrAuthorization", err)
	}
}
