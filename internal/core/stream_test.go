package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

func sendCtx(room domain.RoomID, sender domain.Profile) SendContext {
	return SendContext{RoomID: room, Sender: sender}
}

func TestStreamInitialBatchOrdered(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")

	for i := 0; i < 5; i++ {
		if _, err := e.stream.Send(ctx, fmt.Sprintf("msg-%d", i), sendCtx("general", alice)); err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
	}
	// Noise in another room must not leak into the feed.
	if _, err := e.stream.Send(ctx, "elsewhere", sendCtx("other", alice)); err != nil {
		t.Fatalf("Send elsewhere: %v", err)
	}

	events := make(chan []MessageEvent, 8)
	cancel, err := e.stream.Subscribe("general", func(batch []MessageEvent) {
		events <- batch
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	initial := recvEvents(t, events)
	if len(initial) != 5 {
		t.Fatalf("initial batch has %d events, want 5", len(initial))
	}
	for i, ev := range initial {
		if ev.Type != store.Added {
			t.Fatalf("initial event %d type = %v, want Added", i, ev.Type)
		}
		if want := fmt.Sprintf("msg-%d", i); ev.Message.Text != want {
			t.Fatalf("initial event %d text = %q, want %q", i, ev.Message.Text, want)
		}
	}
}

func TestStreamSendEditDeleteSequence(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")

	events := make(chan []MessageEvent, 8)
	cancel, err := e.stream.Subscribe("general", func(batch []MessageEvent) {
		events <- batch
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if got := recvEvents(t, events); len(got) != 0 {
		t.Fatalf("empty room initial batch = %v", got)
	}

	msg, err := e.stream.Send(ctx, "hi", sendCtx("general", alice))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	added := recvEvents(t, events)
	if len(added) != 1 || added[0].Type != store.Added || added[0].Message.Text != "hi" {
		t.Fatalf("after send: %+v", added)
	}
	if added[0].Message.Edited {
		t.Fatal("fresh message already flagged edited")
	}

	if err := e.stream.Edit(ctx, msg.ID, "hello", "alice"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	modified := recvEvents(t, events)
	if len(modified) != 1 || modified[0].Type != store.Modified {
		t.Fatalf("after edit: %+v", modified)
	}
	if modified[0].Message.Text != "hello" || !modified[0].Message.Edited {
		t.Fatalf("edited message = %+v", modified[0].Message)
	}

	if err := e.stream.Delete(ctx, msg.ID, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	removed := recvEvents(t, events)
	if len(removed) != 1 || removed[0].Type != store.Removed {
		t.Fatalf("after delete: %+v", removed)
	}
	if removed[0].ID != msg.ID {
		t.Fatalf("removed id = %q, want %q", removed[0].ID, msg.ID)
	}
	if removed[0].Message != nil {
		t.Fatal("removed event carries a message body")
	}
}

func TestStreamSendTimestampRoundTrip(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")

	msg, err := e.stream.Send(ctx, "hi", sendCtx("general", alice))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	fresh, err := e.stream.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !fresh.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("CreatedAt round trip: sent %v, read %v", msg.CreatedAt, fresh.CreatedAt)
	}
}

func TestStreamEmptySendNoop(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")

	for _, text := range []string{"", "   ", "\n\t"} {
		msg, err := e.stream.Send(ctx, text, sendCtx("general", alice))
		if err != nil {
			t.Fatalf("Send(%q): %v", text, err)
		}
		if msg != nil {
			t.Fatalf("Send(%q) persisted a message", text)
		}
	}
	history, err := e.stream.History(ctx, "general")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history = %d messages, want none", len(history))
	}
}

func TestStreamEditAuthorization(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")
	e.seedProfile(t, "bob", "Bob")

	msg, err := e.stream.Send(ctx, "mine", sendCtx("general", alice))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := e.stream.Edit(ctx, msg.ID, "hijacked", "bob"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("non-sender edit: err = %v, want ErrAuthorization", err)
	}
	if err := e.stream.Delete(ctx, msg.ID, "bob"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("non-sender delete: err = %v, want ErrAuthorization", err)
	}
	if err := e.stream.Edit(ctx, msg.ID, "  ", "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank edit: err = %v, want ErrValidation", err)
	}

	fresh, err := e.stream.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.Text != "mine" || fresh.Edited {
		t.Fatalf("message mutated by rejected calls: %+v", fresh)
	}
}

func TestStreamReactToggle(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")

	msg, err := e.stream.Send(ctx, "react to me", sendCtx("general", alice))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := e.stream.React(ctx, msg.ID, "heart", "bob"); err != nil {
		t.Fatalf("first React: %v", err)
	}
	fresh, err := e.stream.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !fresh.HasReactor("heart", "bob") {
		t.Fatalf("reactions after add = %v", fresh.Reactions)
	}

	// Second reactor of the same kind coexists.
	if err := e.stream.React(ctx, msg.ID, "heart", "carol"); err != nil {
		t.Fatalf("second React: %v", err)
	}

	// Same user again toggles off, leaving carol's reaction alone.
	if err := e.stream.React(ctx, msg.ID, "heart", "bob"); err != nil {
		t.Fatalf("toggle React: %v", err)
	}
	fresh, err = e.stream.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.HasReactor("heart", "bob") {
		t.Fatalf("bob still reacting after toggle: %v", fresh.Reactions)
	}
	if !fresh.HasReactor("heart", "carol") {
		t.Fatalf("toggle removed carol's reaction: %v", fresh.Reactions)
	}

	// Removing the last reactor drops the kind entirely.
	if err := e.stream.React(ctx, msg.ID, "heart", "carol"); err != nil {
		t.Fatalf("final toggle: %v", err)
	}
	fresh, err = e.stream.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := fresh.Reactions["heart"]; ok {
		t.Fatalf("empty reaction kind kept: %v", fresh.Reactions)
	}
}

func TestStreamReplyRef(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	alice := e.seedProfile(t, "alice", "Alice")
	bob := e.seedProfile(t, "bob", "Bob")

	orig, err := e.stream.Send(ctx, "original", sendCtx("general", alice))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	reply, err := e.stream.Send(ctx, "reply", SendContext{
		RoomID: "general",
		Sender: bob,
		Reply: &domain.ReplyRef{
			MessageID:  orig.ID,
			SenderName: orig.SenderName,
			Excerpt:    domain.Excerpt(orig.Text),
		},
	})
	if err != nil {
		t.Fatalf("Send reply: %v", err)
	}

	fresh, err := e.stream.Get(ctx, reply.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.Reply == nil {
		t.Fatal("reply reference lost")
	}
	if fresh.Reply.MessageID != orig.ID || fresh.Reply.SenderName != "Alice" || fresh.Reply.Excerpt != "original" {
		t.Fatalf("reply ref = %+v", fresh.Reply)
	}
}
