package model

import "time"

// User is a stored account. PasswordHash participates in persistence but must
// never be written to the wire; handlers map users to their own response
// payloads.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshSession is the server-side record behind one refresh token. The
// token itself is never stored; the record lives under a key derived from the
// token hash and expires with the store's TTL.
type RefreshSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
