package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidMessage wraps every validation failure reported by Validate.
var ErrInvalidMessage = errors.New("invalid message")

// Message is one chat message as stored under both sides of a conversation.
type Message struct {
	ID         string `json:"id" validate:"required,segment"`
	SenderID   string `json:"senderId" validate:"required,segment"`
	ReceiverID string `json:"receiverId" validate:"required,segment"`
	Text       string `json:"text" validate:"required"`
	Timestamp  int64  `json:"timestamp" validate:"gt=0"` // ms since epoch, sender clock
}

// ConversationKey is one participant's view of a two-party chat.
type ConversationKey struct {
	OwnerID   string `validate:"required,segment"`
	PartnerID string `validate:"required,segment"`
}

const chatsRoot = "chats"

// Mirror returns the partner's view of the same conversation.
func (k ConversationKey) Mirror() ConversationKey {
	return ConversationKey{OwnerID: k.PartnerID, PartnerID: k.OwnerID}
}

// Path is the tree location holding this side's copy of the messages.
func (k ConversationKey) Path() string {
	return chatsRoot + "/" + k.OwnerID + "/" + k.PartnerID
}

// MessagePath is the tree location of a single message.
func (k ConversationKey) MessagePath(id string) string {
	return k.Path() + "/" + id
}

func (k ConversationKey) String() string {
	return k.OwnerID + "->" + k.PartnerID
}

var (
	validate    = newValidator()
	segmentExpr = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	// ids are used as tree path segments and NATS subject tokens
	_ = v.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
		return segmentExpr.MatchString(fl.Field().String())
	})
	return v
}

// ValidSegment reports whether s can be used as a user or message id.
func ValidSegment(s string) bool {
	return segmentExpr.MatchString(s)
}

// Validate checks the fields required before a message is written.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidMessage)
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// Validate checks that both ids are usable path segments.
func (k ConversationKey) Validate() error {
	if err := validate.Struct(k); err != nil {
		return fmt.Errorf("%w: conversation %s: %v", ErrInvalidMessage, k, err)
	}
	return nil
}
