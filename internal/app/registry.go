package app

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry tracks the live session of each connected client token.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Bind replaces any previous session for the token, closing it first so a
// reconnecting client never ends up with two live views.
func (r *Registry) Bind(token string, s *Session) {
	r.mu.Lock()
	prev := r.sessions[token]
	r.sessions[token] = s
	r.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	log.Info().Str("module", "app.registry").Str("token", token).Msg("session bound")
}

func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Unbind closes and forgets the token's session, if it is still the one
// given (a newer bind wins).
func (r *Registry) Unbind(token string, s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[token]; ok && cur == s {
		delete(r.sessions, token)
	}
	r.mu.Unlock()
	s.Close()
	log.Info().Str("module", "app.registry").Str("token", token).Msg("session unbound")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
