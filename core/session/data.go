package session

import (
	"context"
	"time"
)

// Storage keys. The names match what the web client writes, so a file-backed
// store can be shared with it.
const (
	KeyToken        = "session_token"
	KeyRefreshToken = "refresh_token"
	KeyExpiresAt    = "session_expires_at"
	KeyUserID       = "user_id"
	KeyProfileID    = "profile_id"
	KeyDemoAccount  = "is_demo_account"
	KeyRememberMe   = "remember_me"

	// SyncKey is the storage slot used for cross-tab broadcasts.
	SyncKey = "session_sync"
)

// sessionKeys lists every field owned by a session. remember_me is a login
// preference and survives Clear.
var sessionKeys = []string{
	KeyToken,
	KeyRefreshToken,
	KeyExpiresAt,
	KeyUserID,
	KeyProfileID,
	KeyDemoAccount,
}

// Data is the client-held session. ExpiresAt is absolute wall-clock time.
type Data struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	ProfileID    string    `json:"profileId,omitempty"`
}

// Present reports whether d carries both a token and a user.
func (d Data) Present() bool {
	return d.Token != "" && d.UserID != ""
}

// Action names a cross-tab sync event.
type Action string

const (
	ActionSave  Action = "save"
	ActionClear Action = "clear"
)

// SyncEvent is broadcast to sibling tabs whenever the session changes.
type SyncEvent struct {
	Action    Action    `json:"action"`
	Data      *Data     `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// AuthSession is the current session as reported by the auth provider.
// A zero ExpiresAt means the provider did not say.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// AuthProvider is the external authentication backend.
type AuthProvider interface {
	// CurrentSession returns the active session, or nil when nobody is signed in.
	CurrentSession(ctx context.Context) (*AuthSession, error)
	// Validate asks the provider whether token is still accepted.
	Validate(ctx context.Context, token string) (bool, error)
}

// ProfileResolver maps a user to its profile identifier.
type ProfileResolver interface {
	ProfileID(ctx context.Context, userID string) (string, error)
}

// ProfileResolverFunc adapts a function to ProfileResolver.
type ProfileResolverFunc func(ctx context.Context, userID string) (string, error)

func (f ProfileResolverFunc) ProfileID(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

// RefreshFunc exchanges a refresh token for a new access token. An empty
// token with a nil error means the provider declined.
type RefreshFunc func(ctx context.Context, refreshToken string) (string, error)
