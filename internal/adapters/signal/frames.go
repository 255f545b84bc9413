package signal

import (
	"time"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/app"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

// Wire DTOs. Frames always carry a "type" discriminator.

type profileDTO struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Status   string `json:"status,omitempty"`
	Effect   string `json:"effect,omitempty"`
}

func toProfileDTO(p domain.Profile) profileDTO {
	return profileDTO{
		ID:       string(p.ID),
		Nickname: p.Nickname,
		Avatar:   p.Avatar,
		Bio:      p.Bio,
		Status:   string(p.Status),
		Effect:   p.Effect,
	}
}

type roomDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"room_type"`
	OwnerID    string    `json:"owner_id,omitempty"`
	CategoryID string    `json:"category_id,omitempty"`
	Members    []string  `json:"members"`
	Avatar     string    `json:"avatar,omitempty"`
	Locked     bool      `json:"locked"`
	CreatedAt  time.Time `json:"created_at"`
	ActiveAt   time.Time `json:"active_at"`
}

func toRoomDTO(r *domain.Room) roomDTO {
	members := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, string(m))
	}
	return roomDTO{
		ID:         string(r.ID),
		Name:       r.Name,
		Type:       string(r.Type),
		OwnerID:    string(r.OwnerID),
		CategoryID: string(r.CategoryID),
		Members:    members,
		Avatar:     r.Avatar,
		Locked:     r.Type == domain.RoomPrivate,
		CreatedAt:  r.CreatedAt,
		ActiveAt:   r.ActiveAt,
	}
}

type categoryDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int64  `json:"order"`
}

type replyDTO struct {
	MessageID  string `json:"message_id"`
	SenderName string `json:"sender_name"`
	Excerpt    string `json:"excerpt"`
}

type messageDTO struct {
	ID           string              `json:"id"`
	RoomID       string              `json:"room_id"`
	Text         string              `json:"text"`
	SenderID     string              `json:"sender_id"`
	SenderName   string              `json:"sender_name"`
	SenderAvatar string              `json:"sender_avatar,omitempty"`
	SenderEffect string              `json:"sender_effect,omitempty"`
	Reply        *replyDTO           `json:"reply,omitempty"`
	Edited       bool                `json:"edited,omitempty"`
	Reactions    map[string][]string `json:"reactions,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func toMessageDTO(m *domain.Message) messageDTO {
	dto := messageDTO{
		ID:           string(m.ID),
		RoomID:       string(m.RoomID),
		Text:         m.Text,
		SenderID:     string(m.SenderID),
		SenderName:   m.SenderName,
		SenderAvatar: m.SenderAvatar,
		SenderEffect: m.SenderEffect,
		Edited:       m.Edited,
		CreatedAt:    m.CreatedAt,
	}
	if m.Reply != nil {
		dto.Reply = &replyDTO{
			MessageID:  string(m.Reply.MessageID),
			SenderName: m.Reply.SenderName,
			Excerpt:    m.Reply.Excerpt,
		}
	}
	if len(m.Reactions) > 0 {
		dto.Reactions = make(map[string][]string, len(m.Reactions))
		for kind, users := range m.Reactions {
			list := make([]string, 0, len(users))
			for _, u := range users {
				list = append(list, string(u))
			}
			dto.Reactions[kind] = list
		}
	}
	return dto
}

func enteredFrame(e app.RoomEntered) any {
	members := make([]profileDTO, 0, len(e.Members))
	for _, m := range e.Members {
		members = append(members, toProfileDTO(m))
	}
	return map[string]any{"type": "entered", "room": toRoomDTO(e.Room), "members": members}
}

func roomsFrame(rooms []*domain.Room) any {
	out := make([]roomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomDTO(r))
	}
	return map[string]any{"type": "rooms", "rooms": out}
}

func categoriesFrame(cats []*domain.Category) any {
	out := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryDTO{ID: string(c.ID), Name: c.Name, Order: c.Order})
	}
	return map[string]any{"type": "categories", "categories": out}
}

type messageEventDTO struct {
	Change  string      `json:"change"`
	ID      string      `json:"id"`
	Message *messageDTO `json:"message,omitempty"`
}

func messagesFrame(events []core.MessageEvent) any {
	out := make([]messageEventDTO, 0, len(events))
	for _, ev := range events {
		dto := messageEventDTO{Change: string(ev.Type), ID: string(ev.ID)}
		if ev.Message != nil {
			m := toMessageDTO(ev.Message)
			dto.Message = &m
		}
		out = append(out, dto)
	}
	return map[string]any{"type": "messages", "events": out}
}

func membersFrame(members []domain.Profile) any {
	out := make([]profileDTO, 0, len(members))
	for _, m := range members {
		out = append(out, toProfileDTO(m))
	}
	return map[string]any{"type": "members", "members": out}
}

func mediaFrame(item app.MediaItem) any {
	return map[string]any{
		"type":       "media",
		"room_id":    string(item.RoomID),
		"message_id": string(item.MessageID),
		"url":        item.URL,
	}
}
