package app

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/store"
)

// Session is one client's view of the sync core: its identity, its current
// room, its live subscriptions and its composer state. Nothing here is
// process-wide; two sessions never share mutable state.
type Session struct {
	orch    *Orchestrator
	Events  *SessionEvents
	ctx     context.Context
	cancel  context.CancelFunc
	profile domain.Profile

	mu          sync.Mutex
	gen         int // bumped on every room switch; stale events are dropped
	roomID      domain.RoomID
	cancelMsgs  func()
	cancelRooms func()
	cancelCats  func()
	stagedReply *domain.ReplyRef
	stagedEdit  domain.MessageID
}

func newSession(o *Orchestrator, profile domain.Profile) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		orch:    o,
		Events:  NewSessionEvents(),
		ctx:     ctx,
		cancel:  cancel,
		profile: profile,
	}
}

func (s *Session) User() domain.UserID { return s.profile.ID }

func (s *Session) Profile() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// CurrentRoom returns the room the session is viewing, or "".
func (s *Session) CurrentRoom() domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// start opens the session-lifetime directory views. Each delivers the full
// ordered collection on every change.
func (s *Session) start() error {
	cancelRooms, err := s.orch.Directory.SubscribeRooms(func(rooms []*domain.Room) {
		s.Events.Rooms.Publish(rooms)
		s.refreshMembers(rooms)
	})
	if err != nil {
		return err
	}
	cancelCats, err := s.orch.Directory.SubscribeCategories(func(cats []*domain.Category) {
		s.Events.Categories.Publish(cats)
	})
	if err != nil {
		cancelRooms()
		return err
	}
	s.mu.Lock()
	s.cancelRooms = cancelRooms
	s.cancelCats = cancelCats
	s.mu.Unlock()
	return nil
}

// refreshMembers republishes the member panel when a directory change
// touches the room currently on screen.
func (s *Session) refreshMembers(rooms []*domain.Room) {
	s.mu.Lock()
	current := s.roomID
	s.mu.Unlock()
	if current == "" {
		return
	}
	for _, room := range rooms {
		if room.ID != current {
			continue
		}
		members, err := s.orch.Presence.ResolveMembers(s.ctx, room, s.profile.ID)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.session").Str("room", string(current)).Msg("member refresh failed")
			return
		}
		s.Events.Members.Publish(members)
		return
	}
}

// EnterRoom runs the entry flow: authorize (auto-joining if needed), tear
// down the previous room's subscription, then subscribe the new feed. The
// old subscription is cancelled before the new one exists, and a
// generation check drops anything stale that was already in flight.
func (s *Session) EnterRoom(ctx context.Context, roomID domain.RoomID, password string) error {
	room, err := s.orch.Directory.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.orch.Access.Enter(ctx, room, s.profile.ID, password); err != nil {
		return err
	}
	// Re-read so the announced room reflects the auto-join.
	room, err = s.orch.Directory.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancelMsgs != nil {
		s.cancelMsgs()
		s.cancelMsgs = nil
	}
	s.roomID = room.ID
	s.stagedReply = nil
	s.stagedEdit = ""
	s.mu.Unlock()

	cancelMsgs, err := s.orch.Stream.Subscribe(room.ID, func(events []core.MessageEvent) {
		s.onMessages(gen, room.ID, events)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		// A newer switch won the race; this subscription is already stale.
		s.mu.Unlock()
		cancelMsgs()
		return nil
	}
	s.cancelMsgs = cancelMsgs
	s.mu.Unlock()

	members, err := s.orch.Presence.ResolveMembers(ctx, room, s.profile.ID)
	if err != nil {
		return err
	}
	s.Events.Entered.Publish(RoomEntered{Room: room, Members: members})
	s.Events.Members.Publish(members)
	log.Info().Str("module", "app.session").Str("user", string(s.profile.ID)).Str("room", string(room.ID)).Msg("entered room")
	return nil
}

func (s *Session) onMessages(gen int, roomID domain.RoomID, events []core.MessageEvent) {
	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.Events.Messages.Publish(events)
	for _, ev := range events {
		if ev.Type != store.Added || ev.Message == nil {
			continue
		}
		for _, url := range domain.ExtractImageRefs(ev.Message.Text) {
			s.Events.Media.Publish(MediaItem{RoomID: roomID, MessageID: ev.ID, URL: url})
		}
	}
}

// OpenDirect resolves the canonical direct room with the other user and
// enters it.
func (s *Session) OpenDirect(ctx context.Context, other domain.UserID) (*domain.Room, error) {
	room, err := s.orch.Pairing.GetOrCreate(ctx, s.profile.ID, other)
	if err != nil {
		return nil, err
	}
	if err := s.EnterRoom(ctx, room.ID, ""); err != nil {
		return nil, err
	}
	return room, nil
}

// Send delivers the composer: a staged edit rewrites that message, anything
// else creates a new one carrying the staged reply. Blank text is a no-op
// and leaves composer state untouched.
func (s *Session) Send(ctx context.Context, text string) (*domain.Message, error) {
	s.mu.Lock()
	roomID := s.roomID
	reply := s.stagedReply
	editing := s.stagedEdit
	sender := s.profile
	s.mu.Unlock()
	if roomID == "" {
		return nil, domain.ValidationError("no room selected")
	}

	if editing != "" {
		// Blank text is the same no-op as a blank plain send; the staged
		// edit stays armed.
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		if err := s.orch.Stream.Edit(ctx, editing, text, s.profile.ID); err != nil {
			return nil, err
		}
		s.clearComposer()
		return nil, nil
	}

	msg, err := s.orch.Stream.Send(ctx, text, core.SendContext{
		RoomID: roomID,
		Sender: sender,
		Reply:  reply,
	})
	if err != nil {
		return nil, err
	}
	if msg != nil {
		s.clearComposer()
	}
	return msg, nil
}

func (s *Session) clearComposer() {
	s.mu.Lock()
	s.stagedReply = nil
	s.stagedEdit = ""
	s.mu.Unlock()
}

// StageReply points the composer at a message to quote.
func (s *Session) StageReply(ctx context.Context, id domain.MessageID) error {
	msg, err := s.orch.Stream.Get(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stagedReply = &domain.ReplyRef{
		MessageID:  msg.ID,
		SenderName: msg.SenderName,
		Excerpt:    domain.Excerpt(msg.Text),
	}
	s.stagedEdit = ""
	s.mu.Unlock()
	return nil
}

// StageEdit points the composer at one of the caller's own messages; the
// next Send rewrites it. Returns the current text for the composer.
func (s *Session) StageEdit(ctx context.Context, id domain.MessageID) (string, error) {
	msg, err := s.orch.Stream.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if msg.SenderID != s.profile.ID {
		return "", domain.AuthorizationError("not the message sender")
	}
	s.mu.Lock()
	s.stagedEdit = msg.ID
	s.stagedReply = nil
	s.mu.Unlock()
	return msg.Text, nil
}

func (s *Session) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	return s.orch.Stream.Delete(ctx, id, s.profile.ID)
}

func (s *Session) React(ctx context.Context, id domain.MessageID, kind string) error {
	return s.orch.Stream.React(ctx, id, kind, s.profile.ID)
}

// CreateRoom creates and immediately enters the new room.
func (s *Session) CreateRoom(ctx context.Context, spec core.RoomSpec) (*domain.Room, error) {
	room, err := s.orch.Directory.CreateRoom(ctx, spec, s.profile.ID)
	if err != nil {
		return nil, err
	}
	if err := s.EnterRoom(ctx, room.ID, spec.Password); err != nil {
		return nil, err
	}
	return room, nil
}

// UpdateRoom and DeleteRoom authorize through the access controller before
// touching the directory, which itself stays check-free.
func (s *Session) UpdateRoom(ctx context.Context, id domain.RoomID, patch core.RoomPatch) error {
	room, err := s.orch.Directory.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orch.Access.CanModifyRoom(room, s.profile.ID); err != nil {
		return err
	}
	return s.orch.Directory.UpdateRoom(ctx, id, patch)
}

func (s *Session) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	room, err := s.orch.Directory.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orch.Access.CanModifyRoom(room, s.profile.ID); err != nil {
		return err
	}
	if err := s.orch.Directory.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.roomID == id {
		s.gen++
		s.roomID = ""
		if s.cancelMsgs != nil {
			s.cancelMsgs()
			s.cancelMsgs = nil
		}
	}
	s.mu.Unlock()
	return nil
}

// LeaveRoom drops membership of an ordinary room. Reserved and direct
// rooms keep their member sets.
func (s *Session) LeaveRoom(ctx context.Context, id domain.RoomID) error {
	room, err := s.orch.Directory.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if room.ID == domain.GeneralRoomID || room.IsSavedFor(s.profile.ID) || room.Type == domain.RoomDirect {
		return nil
	}
	if err := s.orch.Directory.Leave(ctx, id, s.profile.ID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.roomID == id {
		s.gen++
		s.roomID = ""
		if s.cancelMsgs != nil {
			s.cancelMsgs()
			s.cancelMsgs = nil
		}
	}
	s.mu.Unlock()
	return nil
}

// Rename updates the profile nickname. Messages already sent keep their
// snapshot.
func (s *Session) Rename(ctx context.Context, name string) error {
	if err := s.orch.Profiles.SetNickname(ctx, s.profile.ID, name); err != nil {
		return err
	}
	s.mu.Lock()
	s.profile.Nickname = name
	s.mu.Unlock()
	return nil
}

// Close tears down every live subscription. Nothing is delivered after it
// returns.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	if s.cancelMsgs != nil {
		s.cancelMsgs()
		s.cancelMsgs = nil
	}
	if s.cancelRooms != nil {
		s.cancelRooms()
		s.cancelRooms = nil
	}
	if s.cancelCats != nil {
		s.cancelCats()
		s.cancelCats = nil
	}
	s.roomID = ""
	s.mu.Unlock()
	s.cancel()
}
