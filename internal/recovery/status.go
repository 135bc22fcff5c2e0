package recovery

import (
	"errors"
	"fmt"

	"csv-share-access/internal/storage"
)

var ErrInvalidTransition = errors.New("invalid recovery request transition")

// Status values are pending, approved and denied. Approved and denied are
// terminal.
type Status = storage.RequestStatus

const (
	StatusPending  = storage.RequestStatusPending
	StatusApproved = storage.RequestStatusApproved
	StatusDenied   = storage.RequestStatusDenied
)

var transitions = map[Status][]Status{
	StatusPending: {StatusApproved, StatusDenied},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns an error wrapping ErrInvalidTransition when from cannot
// move to to.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
