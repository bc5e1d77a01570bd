package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/middleware"
	"github.com/karthikraju391/pairchat/models"
)

type historyItem struct {
	models.Message
	Side     chat.Side `json:"side"`
	Rendered string    `json:"rendered"`
}

// GetConversationMessages returns the caller's copy of the conversation
// with partnerID, oldest first.
func (h *Handler) GetConversationMessages(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUser(c)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	key := models.ConversationKey{OwnerID: userID, PartnerID: c.Params("partnerID")}
	if err := key.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid partner id")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	msgs, err := h.Store.History(c.UserContext(), key)
	if err != nil {
		logger.Error("history_read_failed", "conversation", key.String(), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch messages")
	}

	total := len(msgs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]historyItem, 0, end-start)
	for _, m := range msgs[start:end] {
		side, err := chat.Classify(m, key.OwnerID, key.PartnerID, h.Mode)
		if err != nil {
			logger.Warn("history_item_skipped", "conversation", key.String(), "error", err)
			continue
		}
		items = append(items, historyItem{
			Message:  m,
			Side:     side,
			Rendered: chat.Render(chat.Item{Message: m, Side: side}, h.Location),
		})
	}

	return c.JSON(fiber.Map{
		"messages":  items,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}
