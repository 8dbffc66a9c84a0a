package handlers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/storage"
	"go.uber.org/zap"
)

const maxAttachmentSize = 25 * 1024 * 1024

type UploadHandler struct {
	s      service.UploadService
	logger *zap.Logger
}

func NewUploadHandler(service service.UploadService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{s: service, logger: logger}
}

// Upload stores an audio or image attachment for a feedback entry.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	kind, ok := storage.ParseKind(c.Params("kind"))
	if !ok || kind == storage.KindAvatar {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tipo de anexo inválido",
		})
	}

	data, err := readFormFile(c, "file")
	if err != nil {
		return fileError(c, err)
	}

	url, err := h.s.UploadAttachment(c.UserContext(), kind, data)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url": url,
	})
}

func fileError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		status = ferr.Code
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func readFormFile(c *fiber.Ctx, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Nenhum arquivo enviado")
	}
	if fh.Size > maxAttachmentSize {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, "Arquivo muito grande")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Não foi possível ler o arquivo")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Não foi possível ler o arquivo")
	}
	return data, nil
}
