package handlers

import (
	"context"
	"time"

	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/media"
	"github.com/karthikraju391/pairchat/models"
)

// Store is what the gateway needs from the message store client.
type Store interface {
	chat.Sender
	chat.Subscriber
	History(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
	SaveProfile(ctx context.Context, userID string, p models.Profile) error
	Profile(ctx context.Context, userID string) (models.Profile, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	Store    Store
	Media    media.Uploader
	Mode     chat.ClassifyMode
	Location *time.Location
}
