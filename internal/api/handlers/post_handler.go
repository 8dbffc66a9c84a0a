package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/transfer"
	"github.com/maheshrc27/postreview/pkg/utils"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

type PostHandler struct {
	logger *zap.Logger
}

func NewPostHandler(logger *zap.Logger) *PostHandler {
	return &PostHandler{logger: logger}
}

func postsResponse(state service.PostsState, posts []*models.Post) transfer.PostsResponse {
	resp := transfer.PostsResponse{
		Posts:   transfer.NewPostViews(posts),
		Loading: state.Loading,
	}
	if state.Err != nil {
		resp.Error = service.UserMessage(state.Err)
	}
	return resp
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	status := c.Query("status")
	if status != "" && status != "all" && !models.PostStatus(status).Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Filtro de status inválido",
		})
	}

	return c.JSON(postsResponse(w.Posts.Snapshot(), w.Posts.Filter(status)))
}

func (h *PostHandler) Refresh(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	if err := w.Posts.Refetch(c.UserContext()); err != nil {
		return errorJSON(c, statusFor(err), err)
	}

	state := w.Posts.Snapshot()
	return c.JSON(postsResponse(state, state.Posts))
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	post, ok := w.Posts.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post não encontrado",
		})
	}

	return c.JSON(transfer.NewPostView(post))
}

// reviewable returns the post when it can still be approved or rejected.
func reviewable(c *fiber.Ctx, w *service.Workspace) (*models.Post, error) {
	post, ok := w.Posts.Get(c.Params("id"))
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post não encontrado",
		})
	}
	if post.Status != models.PostStatusPending {
		return nil, c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Este post já foi revisado",
		})
	}
	return post, nil
}

func (h *PostHandler) Approve(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	post, err := reviewable(c, w)
	if post == nil {
		return err
	}

	if err := w.Posts.Approve(c.UserContext(), post.ID); err != nil {
		if errors.Is(err, service.ErrAlreadyReviewed) {
			return errorJSON(c, fiber.StatusConflict, err)
		}
		h.logger.Error("approve post", zap.String("post_id", post.ID), zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": "Erro ao aprovar o post",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Post aprovado com sucesso!",
	})
}

func (h *PostHandler) Reject(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	var req transfer.RejectRequest
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

	in := service.RejectInput{
		Comment:       req.Comment,
		AudioURL:      req.AudioURL,
		AudioDuration: req.AudioDuration,
		ImageURL:      req.ImageURL,
	}
	if err := in.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	post, err := reviewable(c, w)
	if post == nil {
		return err
	}

	if err := w.Posts.Reject(c.UserContext(), post.ID, in); err != nil {
		if errors.Is(err, service.ErrAlreadyReviewed) {
			return errorJSON(c, fiber.StatusConflict, err)
		}
		h.logger.Error("reject post", zap.String("post_id", post.ID), zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": "Erro ao solicitar ajustes",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Ajustes solicitados com sucesso!",
	})
}

func (h *PostHandler) ListFeedback(c *fiber.Ctx) error {
	w := GetWorkspace(c)

	ch := w.OpenFeedback(c.Params("id"))
	entries := ch.Fetch(c.UserContext())

	return c.JSON(fiber.Map{
		"feedback": transfer.NewFeedbackViews(entries),
	})
}

// FeedbackStream sends the thread as server-sent events, once on connect
// and again on every change, until the client leaves or the session ends.
func (h *PostHandler) FeedbackStream(c *fiber.Ctx) error {
	w := GetWorkspace(c)
	postID := c.Params("id")
	logger := h.logger.With(zap.String("post_id", postID))

	prepareStream(c)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(bw *bufio.Writer) {
		ch := w.OpenFeedback(postID)
		changes, stop := ch.Watch()
		defer stop()

		if err := ch.Open(context.Background()); err != nil {
			logger.Warn("open feedback stream", zap.Error(err))
			return
		}
		defer ch.Close()

		stream(bw, w, changes, logger, "feedback", func() any {
			return transfer.NewFeedbackViews(ch.Snapshot().Entries)
		})
	}))

	return nil
}

// PostsStream sends the post collection as server-sent events on every
// change.
func (h *PostHandler) PostsStream(c *fiber.Ctx) error {
	w := GetWorkspace(c)
	status := c.Query("status")

	prepareStream(c)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(bw *bufio.Writer) {
		changes, stop := w.Posts.Watch()
		defer stop()

		stream(bw, w, changes, h.logger, "posts", func() any {
			return postsResponse(w.Posts.Snapshot(), w.Posts.Filter(status))
		})
	}))

	return nil
}

func prepareStream(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

func stream(bw *bufio.Writer, w *service.Workspace, changes <-chan struct{}, logger *zap.Logger, event string, snapshot func() any) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	if err := writeEvent(bw, event, snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-w.Done():
			_ = writeEvent(bw, "signed_out", fiber.Map{"route": service.RouteLogin})
			return
		case <-changes:
			if err := writeEvent(bw, event, snapshot()); err != nil {
				logger.Debug("stream client gone", zap.String("event", event), zap.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := bw.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(bw *bufio.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return bw.Flush()
}
