package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrContextNotFound is returned when a user has no stored session.
	ErrContextNotFound = errors.New("conversation context not found")
	// ErrVersionConflict is returned when a session was written by someone
	// else since it was loaded.
	ErrVersionConflict = errors.New("conversation context version conflict")
)

// StoredContext is a serialized conversation context as held by a
// repository, with the bookkeeping kept next to it.
type StoredContext struct {
	SessionID       uuid.UUID
	Payload         []byte
	Version         int64
	LastInteraction time.Time
}
