package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for the failures a messaging operation can report to its caller.
var (
	ErrUnknownRoom      = errors.New("unknown room")
	ErrNotFound         = errors.New("message not found")
	ErrDuplicateSession = errors.New("session already registered")
	ErrNotJoined        = errors.New("session has not joined")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrUnknownEvent     = errors.New("unknown event")
)

// UnknownRoomError names the room that is outside the configured room set.
type UnknownRoomError struct {
	Room string
}

func (e *UnknownRoomError) Error() string {
	return fmt.Sprintf("unknown room %q", e.Room)
}

// Is lets errors.Is(err, ErrUnknownRoom) match any UnknownRoomError.
func (e *UnknownRoomError) Is(target error) bool {
	return target == ErrUnknownRoom
}

// NotFoundError carries the message id a reaction or read receipt referenced.
type NotFoundError struct {
	MessageID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %d not found", e.MessageID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
