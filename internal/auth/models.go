// Package auth keeps signing keys server-side. A login creates a session
// holding the actor's key seed; the client only ever sees a JWT carrying the
// session ID. Middleware exchanges the token for an Actor on every request.
package auth

import (
	"time"

	"givingchain/internal/identity"
	"givingchain/internal/keyring"
)

// Session binds a session ID to an authenticated actor. The key seed stays
// in the session store and never crosses the wire.
type Session struct {
	ID        string
	DID       string
	Username  string
	KeySeed   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Actor reconstructs the authenticated actor from the stored seed.
func (s *Session) Actor() (identity.Actor, error) {
	key, err := keyring.FromSeed(s.KeySeed)
	if err != nil {
		return identity.Actor{}, err
	}
	return identity.Actor{DID: s.DID, Username: s.Username, Key: key}, nil
}
