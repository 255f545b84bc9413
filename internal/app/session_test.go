package app

import (
	"context"
	"testing"
	"time"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

func newOrch(t *testing.T) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(store.NewMemory())
	if err := o.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return o
}

func openSession(t *testing.T, o *Orchestrator, user domain.UserID, name string) *Session {
	t.Helper()
	s, err := o.OpenSession(context.Background(), user, name)
	if err != nil {
		t.Fatalf("OpenSession(%s): %v", user, err)
	}
	t.Cleanup(s.Close)
	return s
}

func recvBatch(t *testing.T, ch <-chan []core.MessageEvent) []core.MessageEvent {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message batch")
		return nil
	}
}

func TestOpenSessionBootstraps(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	s := openSession(t, o, "alice", "Alice")

	prof := s.Profile()
	if prof.ID != "alice" || prof.Nickname != "Alice" {
		t.Fatalf("profile = %+v", prof)
	}
	saved, err := o.Directory.GetRoom(ctx, domain.SavedRoomID("alice"))
	if err != nil {
		t.Fatalf("saved room missing: %v", err)
	}
	if !saved.IsSavedFor("alice") {
		t.Fatalf("saved room = %+v", saved)
	}

	// A second open with a different hint keeps the stored nickname.
	s2 := openSession(t, o, "alice", "Someone Else")
	if s2.Profile().Nickname != "Alice" {
		t.Fatalf("reopened nickname = %q", s2.Profile().Nickname)
	}
}

func TestSessionRoomSwitchNoStaleEvents(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	s := openSession(t, o, "alice", "Alice")

	roomA, err := o.Directory.CreateRoom(ctx, core.RoomSpec{Name: "A"}, "alice")
	if err != nil {
		t.Fatalf("CreateRoom A: %v", err)
	}
	roomB, err := o.Directory.CreateRoom(ctx, core.RoomSpec{Name: "B"}, "alice")
	if err != nil {
		t.Fatalf("CreateRoom B: %v", err)
	}

	batches := make(chan []core.MessageEvent, 16)
	unhook := s.Events.Messages.Subscribe(func(events []core.MessageEvent) {
		batches <- events
	})
	defer unhook()

	if err := s.EnterRoom(ctx, roomA.ID, ""); err != nil {
		t.Fatalf("EnterRoom A: %v", err)
	}
	if got := recvBatch(t, batches); len(got) != 0 {
		t.Fatalf("initial batch for empty room = %v", got)
	}
	if _, err := s.Send(ctx, "in A"); err != nil {
		t.Fatalf("Send in A: %v", err)
	}
	got := recvBatch(t, batches)
	if len(got) != 1 || got[0].Message.Text != "in A" {
		t.Fatalf("batch in A = %+v", got)
	}

	if err := s.EnterRoom(ctx, roomB.ID, ""); err != nil {
		t.Fatalf("EnterRoom B: %v", err)
	}
	if s.CurrentRoom() != roomB.ID {
		t.Fatalf("current room = %q", s.CurrentRoom())
	}
	if got := recvBatch(t, batches); len(got) != 0 {
		t.Fatalf("initial batch for B = %+v", got)
	}

	// Traffic in the abandoned room must not reach this session anymore.
	if _, err := o.Stream.Send(ctx, "stale in A", core.SendContext{RoomID: roomA.ID, Sender: s.Profile()}); err != nil {
		t.Fatalf("Send stale: %v", err)
	}
	if _, err := s.Send(ctx, "in B"); err != nil {
		t.Fatalf("Send in B: %v", err)
	}
	got = recvBatch(t, batches)
	if len(got) != 1 || got[0].Message.Text != "in B" {
		t.Fatalf("batch after switch = %+v", got)
	}
	select {
	case extra := <-batches:
		t.Fatalf("unexpected extra batch: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionComposerReply(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	s := openSession(t, o, "alice", "Alice")
	if err := s.EnterRoom(ctx, domain.GeneralRoomID, ""); err != nil {
		t.Fatalf("EnterRoom: %v", err)
	}

	orig, err := s.Send(ctx, "original")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.StageReply(ctx, orig.ID); err != nil {
		t.Fatalf("StageReply: %v", err)
	}

	// Blank submissions do not consume the staged reply.
	if msg, err := s.Send(ctx, "   "); err != nil || msg != nil {
		t.Fatalf("blank send = %v, %v", msg, err)
	}

	reply, err := s.Send(ctx, "the reply")
	if err != nil {
		t.Fatalf("Send reply: %v", err)
	}
	if reply.Reply == nil || reply.Reply.MessageID != orig.ID || reply.Reply.Excerpt != "original" {
		t.Fatalf("reply ref = %+v", reply.Reply)
	}

	// One send consumes the staged reply.
	plain, err := s.Send(ctx, "plain")
	if err != nil {
		t.Fatalf("Send plain: %v", err)
	}
	if plain.Reply != nil {
		t.Fatalf("composer not cleared: %+v", plain.Reply)
	}
}

func TestSessionStagedEdit(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	s := openSession(t, o, "alice", "Alice")
	if err := s.EnterRoom(ctx, domain.GeneralRoomID, ""); err != nil {
		t.Fatalf("EnterRoom: %v", err)
	}

	msg, err := s.Send(ctx, "tyop")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	text, err := s.StageEdit(ctx, msg.ID)
	if err != nil {
		t.Fatalf("StageEdit: %v", err)
	}
	if text != "tyop" {
		t.Fatalf("staged text = %q", text)
	}

	// Blank text while editing is a no-op and keeps the edit staged.
	if out, err := s.Send(ctx, "   "); err != nil || out != nil {
		t.Fatalf("blank edit send = %v, %v", out, err)
	}

	if out, err := s.Send(ctx, "typo"); err != nil || out != nil {
		t.Fatalf("edit send = %v, %v", out, err)
	}
	history, err := o.Stream.History(ctx, domain.GeneralRoomID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d messages, edit must not create one", len(history))
	}
	if history[0].Text != "typo" || !history[0].Edited {
		t.Fatalf("edited message = %+v", history[0])
	}

	// Composer is back to normal sends.
	if _, err := s.Send(ctx, "fresh"); err != nil {
		t.Fatalf("Send after edit: %v", err)
	}
	history, err = o.Stream.History(ctx, domain.GeneralRoomID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d messages after fresh send", len(history))
	}
}

func TestSessionStageEditRejectsForeign(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	alice := openSession(t, o, "alice", "Alice")
	bob := openSession(t, o, "bob", "Bob")
	if err := alice.EnterRoom(ctx, domain.GeneralRoomID, ""); err != nil {
		t.Fatalf("EnterRoom: %v", err)
	}

	msg, err := alice.Send(ctx, "mine")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := bob.StageEdit(ctx, msg.ID); err == nil {
		t.Fatal("foreign StageEdit succeeded")
	}
}

func TestSessionDeleteRoomTearsDown(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	s := openSession(t, o, "alice", "Alice")

	room, err := s.CreateRoom(ctx, core.RoomSpec{Name: "doomed"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if s.CurrentRoom() != room.ID {
		t.Fatalf("current room = %q after create", s.CurrentRoom())
	}
	if err := s.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if s.CurrentRoom() != "" {
		t.Fatalf("current room = %q after delete", s.CurrentRoom())
	}
}

func TestSessionOpenDirect(t *testing.T) {
	o := newOrch(t)
	ctx := context.Background()
	alice := openSession(t, o, "alice", "Alice")
	openSession(t, o, "bob", "Bob")

	room, err := alice.OpenDirect(ctx, "bob")
	if err != nil {
		t.Fatalf("OpenDirect: %v", err)
	}
	if room.ID != domain.DirectRoomID("alice", "bob") {
		t.Fatalf("direct room id = %q", room.ID)
	}
	if alice.CurrentRoom() != room.ID {
		t.Fatalf("current room = %q", alice.CurrentRoom())
	}
}

func TestRegistryBindReplaces(t *testing.T) {
	o := newOrch(t)
	first := openSession(t, o, "alice", "Alice")
	second := openSession(t, o, "alice", "Alice")

	o.Registry.Bind("tok", first)
	o.Registry.Bind("tok", second)
	if o.Registry.Len() != 1 {
		t.Fatalf("registry len = %d", o.Registry.Len())
	}

	// Unbinding a superseded session must not evict the current one.
	o.Registry.Unbind("tok", first)
	if o.Registry.Len() != 1 {
		t.Fatal("stale unbind evicted the live session")
	}
	o.Registry.Unbind("tok", second)
	if o.Registry.Len() != 0 {
		t.Fatal("unbind did not evict")
	}
}
