package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Client enqueues mail tasks on redis.
type Client struct {
	asynq *asynq.Client
}

func NewClient(asynqClient *asynq.Client) *Client {
	return &Client{asynq: asynqClient}
}

func (c *Client) EnqueuePasswordReset(ctx context.Context, payload MailPayload) error {
	return c.enqueue(ctx, TaskTypePasswordReset, payload)
}

func (c *Client) EnqueueConfirmation(ctx context.Context, payload MailPayload) error {
	return c.enqueue(ctx, TaskTypeConfirmEmail, payload)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload MailPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskType, taskPayload)
	_, err = c.asynq.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	return err
}
