package domain

import "fmt"

// Status is the lifecycle state of an encryption key.
type Status string

const (
	// StatusActive keys encrypt new data. A lineage has at most one.
	StatusActive Status = "ACTIVE"
	// StatusRotating marks the old key while its successor is being installed.
	StatusRotating Status = "ROTATING"
	// StatusRetired keys only decrypt.
	StatusRetired Status = "RETIRED"
	// StatusDestroyed keys have no material left.
	StatusDestroyed Status = "DESTROYED"
)

func (s Status) String() string {
	return string(s)
}

// Decryptable reports whether a key in this state can still open ciphertext.
func (s Status) Decryptable() bool {
	switch s {
	case StatusActive, StatusRotating, StatusRetired:
		return true
	case StatusDestroyed:
		return false
	default:
		return false
	}
}

// Event drives a state transition.
type Event string

const (
	EventBeginRotation    Event = "BEGIN_ROTATION"
	EventCompleteRotation Event = "COMPLETE_ROTATION"
	EventDestroy          Event = "DESTROY"
)

// Transition returns the state reached from `from` on event. It has no side effects.
//
//	ACTIVE   --BEGIN_ROTATION-->    ROTATING
//	ROTATING --COMPLETE_ROTATION--> RETIRED
//	RETIRED  --DESTROY-->           DESTROYED
func Transition(from Status, event Event) (Status, error) {
	switch event {
	case EventBeginRotation:
		if from == StatusActive {
			return StatusRotating, nil
		}
	case EventCompleteRotation:
		if from == StatusRotating {
			return StatusRetired, nil
		}
	case EventDestroy:
		if from == StatusRetired {
			return StatusDestroyed, nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}
