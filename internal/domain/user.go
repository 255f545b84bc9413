// Package domain contains entities without logic, just meta-data.
package domain

const (
	MaxUserIDLen   = 64
	MaxNicknameLen = 36
)

type UserID string

// PresenceStatus is the coarse availability state a user advertises.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// Profile is the read-side of a users document. This core denormalizes
// these fields into message/room snapshots; it does not own their lifecycle.
type Profile struct {
	ID       UserID         `json:"id"`
	Nickname string         `json:"nickname"`
	Avatar   string         `json:"avatar"`
	Bio      string         `json:"bio"`
	Status   PresenceStatus `json:"status"`
	Effect   string         `json:"effect"`
}

// UnknownUserLabel stands in for a member whose profile document is gone.
const UnknownUserLabel = "unknown user"

// PlaceholderProfile keeps member resolution total when a profile is missing.
func PlaceholderProfile(id UserID) Profile {
	return Profile{ID: id, Nickname: UnknownUserLabel, Status: StatusOffline}
}

func (p *Profile) SetNickname(name string) error {
	if name == "" {
		return ValidationError("nickname empty")
	}
	if len(name) > MaxNicknameLen {
		return ValidationError("nickname too long")
	}
	p.Nickname = name
	return nil
}
