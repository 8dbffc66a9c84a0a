package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postreview/configs"
	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/transfer"
	"github.com/maheshrc27/postreview/pkg/utils"
	"go.uber.org/zap"
)

// Registrar covers the account flows that need no session.
type Registrar interface {
	SignUp(ctx context.Context, in service.SignUpInput) (*models.User, error)
	ConfirmEmail(ctx context.Context, token string) error
	RecoverPassword(ctx context.Context, recoveryToken, newPassword string) error
}

type AuthHandler struct {
	ws     *service.Workspaces
	r      Registrar
	cfg    config.Config
	logger *zap.Logger
}

func NewAuthHandler(cfg config.Config, ws *service.Workspaces, r Registrar, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{ws: ws, r: r, cfg: cfg, logger: logger}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req transfer.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	w, err := h.ws.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": service.UserMessage(err),
			"route": service.RouteLogin,
		})
	}

	expiresAt := w.Session.ExpiresAt()
	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    w.Session.AccessToken(),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  expiresAt,
	})

	return c.JSON(transfer.LoginResponse{
		AccessToken: w.Session.AccessToken(),
		ExpiresAt:   expiresAt,
		User:        w.Session.CurrentUser(),
		Route:       string(w.Session.Route()),
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req transfer.RegisterRequest
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

	user, err := h.r.SignUp(c.UserContext(), service.SignUpInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": service.TranslateAuthError(err.Error()),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Cadastro realizado! Verifique seu e-mail para confirmar a conta.",
		"user":    user,
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req transfer.ResetPasswordRequest
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

	if err := h.ws.ResetPassword(c.UserContext(), req.Email, req.RedirectTo); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	return c.JSON(fiber.Map{
		"message": "Enviamos um link de recuperação para o seu e-mail",
	})
}

func (h *AuthHandler) ConfirmEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Token ausente",
		})
	}

	if err := h.r.ConfirmEmail(c.UserContext(), token); err != nil {
		h.logger.Info("email confirmation failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Link de confirmação inválido ou expirado",
		})
	}

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

func (h *AuthHandler) RecoverPassword(c *fiber.Ctx) error {
	var req transfer.RecoverPasswordRequest
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
	if req.Password != req.ConfirmPassword {
		return errorJSON(c, fiber.StatusBadRequest, service.ErrPasswordMismatch)
	}

	if err := h.r.RecoverPassword(c.UserContext(), req.Token, req.Password); err != nil {
		var authErr *service.AuthError
		if errors.As(err, &authErr) && authErr.Message == "Invalid token" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Link de recuperação inválido ou expirado",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": service.TranslateAuthError(err.Error()),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Senha atualizada com sucesso",
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	w := GetWorkspace(c)
	h.ws.SignOut(c.UserContext(), w.Session.SessionID())

	c.Cookie(&fiber.Cookie{
		Name:    h.cfg.CookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})

	return c.JSON(fiber.Map{
		"route": service.RouteLogin,
	})
}
