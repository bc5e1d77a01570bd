package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karthikraju391/pairchat/logger"
	"github.com/karthikraju391/pairchat/media"
	"github.com/karthikraju391/pairchat/middleware"
	"github.com/karthikraju391/pairchat/models"
	"github.com/karthikraju391/pairchat/store"
)

// UploadProfilePhoto stores the "photo" form file with the media store and
// saves the caller's profile with the returned URL.
func (h *Handler) UploadProfilePhoto(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUser(c)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	profile := models.Profile{UserID: userID, Username: c.FormValue("username")}
	if err := profile.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "username is required")
	}

	header, err := c.FormFile("photo")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "photo file is required")
	}
	file, err := header.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot read photo")
	}
	defer file.Close()

	url, err := h.Media.Upload(c.UserContext(), uuid.NewString(), file)
	if errors.Is(err, media.ErrNotConfigured) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		logger.Error("photo_upload_failed", "user", userID, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, "Image upload failed")
	}
	profile.ImageURL = url

	if err := h.Store.SaveProfile(c.UserContext(), userID, profile); err != nil {
		logger.Error("profile_save_failed", "user", userID, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to save profile")
	}
	logger.Info("profile_saved", "user", userID)
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	p, err := h.Store.Profile(c.UserContext(), c.Params("userID"))
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Profile not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load profile")
	}
	return c.JSON(p)
}
