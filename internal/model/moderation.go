package model

import (
	"errors"
	"fmt"
)

// Status is the moderation state of an event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
	StatusRejected  Status = "rejected"
)

// ErrInvalidTransition is returned by Transition for a move the table does
// not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status][]Status{
	StatusPending:   {StatusPublished, StatusDraft, StatusRejected},
	StatusDraft:     {StatusPending, StatusPublished, StatusRejected},
	StatusPublished: {StatusDraft, StatusRejected},
	StatusRejected:  {StatusDraft, StatusPending},
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// CanTransition reports whether an admin may move an event from one state
// to another. Staying in the same state is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		_, ok := transitions[from]
		return ok
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns the new state or ErrInvalidTransition.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
