package queue

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TaskTypePasswordReset = "auth:password_reset"
	TaskTypeConfirmEmail  = "auth:confirm_email"
)

type MailPayload struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

// Queue consumes mail tasks.
type Queue struct {
	mailer Mailer
	logger *zap.Logger
}

func NewQueue(mailer Mailer, logger *zap.Logger) *Queue {
	return &Queue{mailer: mailer, logger: logger}
}

func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePasswordReset, q.HandlePasswordResetTask)
	mux.HandleFunc(TaskTypeConfirmEmail, q.HandleConfirmEmailTask)
}
