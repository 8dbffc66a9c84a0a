package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

var mailTemplate = template.Must(template.New("mail").Parse(
	`<p>{{.Intro}}</p><p><a href="{{.Link}}">{{.Action}}</a></p><p>Se você não solicitou, ignore este e-mail.</p>`,
))

type mailContent struct {
	Subject string
	Intro   string
	Action  string
}

var (
	passwordResetMail = mailContent{
		Subject: "Redefinição de senha",
		Intro:   "Recebemos um pedido para redefinir a sua senha.",
		Action:  "Redefinir senha",
	}
	confirmEmailMail = mailContent{
		Subject: "Confirme seu e-mail",
		Intro:   "Confirme seu e-mail para começar a aprovar seus posts.",
		Action:  "Confirmar e-mail",
	}
)

func (q *Queue) HandlePasswordResetTask(ctx context.Context, task *asynq.Task) error {
	return q.send(ctx, task, passwordResetMail)
}

func (q *Queue) HandleConfirmEmailTask(ctx context.Context, task *asynq.Task) error {
	return q.send(ctx, task, confirmEmailMail)
}

func (q *Queue) send(ctx context.Context, task *asynq.Task, content mailContent) error {
	var payload MailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	if payload.Email == "" || payload.Link == "" {
		return fmt.Errorf("%s payload missing email or link: %w", task.Type(), asynq.SkipRetry)
	}

	var html bytes.Buffer
	err := mailTemplate.Execute(&html, map[string]string{
		"Intro":  content.Intro,
		"Action": content.Action,
		"Link":   payload.Link,
	})
	if err != nil {
		return err
	}
	plain := fmt.Sprintf("%s\n\n%s: %s", content.Intro, content.Action, payload.Link)

	if err := q.mailer.Send(ctx, payload.Email, content.Subject, plain, html.String()); err != nil {
		q.logger.Warn("send mail", zap.String("task", task.Type()), zap.Error(err))
		return err
	}

	q.logger.Info("mail sent", zap.String("task", task.Type()))
	return nil
}
