package handlers

import (
	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postreview/configs"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/transfer"
	"github.com/maheshrc27/postreview/pkg/utils"
)

type SettingsHandler struct {
	s   service.ProfileService
	cfg config.Config
}

func NewSettingsHandler(cfg config.Config, service service.ProfileService) *SettingsHandler {
	return &SettingsHandler{s: service, cfg: cfg}
}

func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	overview, err := h.s.Overview(c.UserContext(), w.Session.CurrentUser())
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}

	return c.JSON(fiber.Map{
		"user":    w.Session.CurrentUser(),
		"profile": overview.Profile,
		"company": overview.Company,
	})
}

func (h *SettingsHandler) UpdateAvatar(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	data, err := readFormFile(c, "file")
	if err != nil {
		return fileError(c, err)
	}

	url, err := h.s.UpdateAvatar(c.UserContext(), w.Session.CurrentUser(), data)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}

	return c.JSON(fiber.Map{
		"avatar_url": url,
	})
}

func (h *SettingsHandler) UpdatePassword(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	var req transfer.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := w.Session.UpdatePassword(c.UserContext(), req.NewPassword, req.ConfirmPassword); err != nil {
		return errorJSON(c, statusFor(err), err)
	}

	return c.JSON(fiber.Map{
		"message": "Senha atualizada com sucesso",
	})
}

func (h *SettingsHandler) DeleteAccount(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	if err := h.s.DeleteAccount(c.UserContext(), w.Session); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Não foi possível excluir a conta",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	return c.JSON(fiber.Map{
		"route": service.RouteLogin,
	})
}
