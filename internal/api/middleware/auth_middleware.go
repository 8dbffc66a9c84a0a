package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postreview/configs"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/transfer"
	"github.com/maheshrc27/postreview/pkg/utils"
	"go.uber.org/zap"
)

const (
	LocalWorkspace = "workspace"
	LocalUserID    = "user_id"
	LocalRequestID = "request_id"
)

type AuthMiddleware struct {
	ws     *service.Workspaces
	cfg    config.Config
	logger *zap.Logger
}

func NewAuthMiddleware(cfg config.Config, ws *service.Workspaces, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{ws: ws, cfg: cfg, logger: logger}
}

// APIKey rejects requests whose apikey header is not the public key.
func (m *AuthMiddleware) APIKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("apikey") != m.cfg.PublicAPIKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Chave de API inválida",
			})
		}
		return c.Next()
	}
}

// AuthMiddleware resolves the session token, from the cookie or a bearer
// header, to the reviewer's workspace.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		if tokenString == "" {
			tokenString = bearerToken(c.Get(fiber.HeaderAuthorization))
		}

		if tokenString == "" {
			return unauthorized(c, "Sessão não encontrada")
		}

		claims, err := utils.ValidateToken(m.cfg.JWTSecret, tokenString, transfer.PurposeSession)
		if err != nil {
			m.logger.Debug("token validation failed", zap.Error(err))
			m.ClearCookie(c)
			return unauthorized(c, "Sessão inválida ou expirada")
		}

		w, ok := m.ws.Lookup(claims.SessionID)
		if !ok || !w.Session.IsAuthenticated() {
			m.ClearCookie(c)
			return unauthorized(c, "Sessão inválida ou expirada")
		}

		c.Locals(LocalWorkspace, w)
		c.Locals(LocalUserID, claims.UserID)
		return c.Next()
	}
}

func (m *AuthMiddleware) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:   m.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"route": service.RouteLogin,
	})
}
