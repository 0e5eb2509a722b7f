package shared

import "strings"

// UserID identifies the owner of streaks and experience. Opaque to the
// engine.
type UserID string

// NewUserID validates and creates a UserID.
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidUserID
	}
	return UserID(id), nil
}

func (id UserID) String() string { return string(id) }

// ActivityID names a kind of daily activity ("login", "lesson").
type ActivityID string

// NewActivityID validates and creates an ActivityID.
func NewActivityID(id string) (ActivityID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidActivityID
	}
	return ActivityID(id), nil
}

func (id ActivityID) String() string { return string(id) }

// LoadResult tells whether LoadOrCreate found an existing row or inserted
// the seed.
type LoadResult int

const (
	LoadExisting LoadResult = iota
	LoadCreated
)

func (r LoadResult) String() string {
	if r == LoadCreated {
		return "created"
	}
	return "existing"
}
