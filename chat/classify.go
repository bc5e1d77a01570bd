package chat

import (
	"errors"
	"fmt"

	"github.com/karthikraju391/pairchat/models"
)

var (
	// ErrIdentityUnavailable means there is no authenticated user to open a
	// conversation for.
	ErrIdentityUnavailable = errors.New("identity unavailable")

	// ErrForeignMessage is reported in strict mode for a message whose sender
	// is not the current user and whose receiver is not the partner.
	ErrForeignMessage = errors.New("message does not belong to this conversation")
)

// Side says which bubble a message is drawn in.
type Side int

const (
	Unknown Side = iota
	Mine
	Theirs
)

func (s Side) String() string {
	switch s {
	case Mine:
		return "mine"
	case Theirs:
		return "theirs"
	default:
		return "unknown"
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "mine":
		*s = Mine
	case "theirs":
		*s = Theirs
	default:
		*s = Unknown
	}
	return nil
}

// ClassifyMode selects what happens to a message that matches neither
// participant.
type ClassifyMode int

const (
	// Lenient draws such a message as Mine.
	Lenient ClassifyMode = iota
	// Strict rejects it with ErrForeignMessage.
	Strict
)

// Classify returns Mine when the current user sent m, Theirs when m is
// addressed to the partner, and otherwise Mine (Lenient) or
// ErrForeignMessage (Strict).
func Classify(m models.Message, currentUserID, partnerID string, mode ClassifyMode) (Side, error) {
	switch {
	case m.SenderID == currentUserID:
		return Mine, nil
	case m.ReceiverID == partnerID:
		return Theirs, nil
	case mode == Strict:
		return Unknown, fmt.Errorf("%w: id=%s sender=%s receiver=%s", ErrForeignMessage, m.ID, m.SenderID, m.ReceiverID)
	default:
		return Mine, nil
	}
}
