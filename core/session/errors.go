package session

import "errors"

var (
	// ErrInvalidSession is returned when saving data without a token or user ID.
	ErrInvalidSession = errors.New("session requires token and user id")
	// ErrSaveSession is returned when persisting session fields fails.
	ErrSaveSession = errors.New("failed to save session")
	// ErrClearSession is returned when removing session fields fails.
	ErrClearSession = errors.New("failed to clear session")
	// ErrProfileNotFound may be returned by a ProfileResolver for users without a profile.
	ErrProfileNotFound = errors.New("profile not found")
)
