package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postreview/internal/api/middleware"
	"github.com/maheshrc27/postreview/internal/service"
)

func GetWorkspace(c *fiber.Ctx) *service.Workspace {
	w, _ := c.Locals(middleware.LocalWorkspace).(*service.Workspace)
	return w
}

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	return userID
}

// errorJSON answers with the readable message of err.
func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error": service.UserMessage(err),
	})
}

func statusFor(err error) int {
	var authErr *service.AuthMessageError
	var uploadErr *service.UploadError
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrNoCompanyFound), errors.Is(err, service.ErrProfileNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrAlreadyReviewed):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrAttachmentRequired), errors.Is(err, service.ErrPasswordMismatch):
		return fiber.StatusBadRequest
	case errors.As(err, &authErr):
		return fiber.StatusBadRequest
	case errors.As(err, &uploadErr):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}
