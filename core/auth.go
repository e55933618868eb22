package core

import "time"

// PhraseTTL is how long an issued login phrase stays valid for signing.
const PhraseTTL = 15 * time.Minute

// LoginPhrase represents an outstanding login challenge
type LoginPhrase struct {
	Phrase    string    `json:"loginPhrase"` // <timestampMillis><random suffix>
	CreatedAt time.Time `json:"createdAt"`
	ExpireAt  time.Time `json:"expireAt"`
}

// Expired reports whether the phrase can no longer be signed at now.
func (p *LoginPhrase) Expired(now time.Time) bool {
	return !now.Before(p.ExpireAt)
}

// Session represents an authenticated user session
type Session struct {
	ID        string    `json:"id"`          // Internal identifier, never exposed to clients
	Address   string    `json:"zelid"`       // Claimed identity of the user
	Phrase    string    `json:"loginPhrase"` // Phrase that was signed to create the session
	Signature string    `json:"signature"`   // Signature supplied by the client
	CreatedAt time.Time `json:"createdAt"`
}

// PendingSignature is a signature handed over by a signing device for
// another device waiting on its identifier.
type PendingSignature struct {
	Signature  string    `json:"signature"`
	Identifier string    `json:"identifier"` // address + last 13 chars of the signed message
	CreatedAt  time.Time `json:"createdAt"`
	ExpireAt   time.Time `json:"expireAt"`
}

// Expired reports whether the pending signature has outlived its TTL.
func (s *PendingSignature) Expired(now time.Time) bool {
	return !now.Before(s.ExpireAt)
}

// Credentials identify the caller of an authenticated operation.
type Credentials struct {
	Address   string `json:"zelid"`
	Signature string `json:"signature"`
	Phrase    string `json:"loginPhrase,omitempty"`
}

// LoginResult is returned to a client once its signed phrase is accepted,
// both from the login call and from the login long-poll.
type LoginResult struct {
	Message   string `json:"message"`
	Address   string `json:"zelid"`
	Phrase    string `json:"loginPhrase"`
	Signature string `json:"signature"`
	Tier      Tier   `json:"privilage"`
}

// SessionView is the externally visible projection of a Session.
type SessionView struct {
	Address string `json:"zelid"`
	Phrase  string `json:"loginPhrase"`
}

// View projects the session for listing endpoints.
func (s Session) View() SessionView {
	return SessionView{Address: s.Address, Phrase: s.Phrase}
}
