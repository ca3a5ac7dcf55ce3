// Package session keeps a client's sign-in state for the cantina API: where
// the tokens live, silent refresh, and retry of requests that hit a 401.
package session

import "time"

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// User mirrors the API's user projection.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot is what a Store persists between runs.
type Snapshot struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Event is delivered to subscribers on every state or user change.
type Event struct {
	State State
	User  *User
}
