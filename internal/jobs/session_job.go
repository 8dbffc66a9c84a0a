package job

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const resyncTimeout = time.Minute

type SessionExpirer interface {
	ExpireSessions(now time.Time) int
}

type Resyncer interface {
	ResyncAll(ctx context.Context) int
}

// SessionJob ends expired sessions and periodically refetches every open
// workspace in case a change notification was missed.
type SessionJob struct {
	sessions SessionExpirer
	rs       Resyncer
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionJob(sessions SessionExpirer, rs Resyncer, logger *zap.Logger) *SessionJob {
	return &SessionJob{
		sessions: sessions,
		rs:       rs,
		logger:   logger,
		now:      time.Now,
	}
}

func (j *SessionJob) ExpireSessions() {
	if n := j.sessions.ExpireSessions(j.now()); n > 0 {
		j.logger.Info("expired sessions", zap.Int("count", n))
	}
}

func (j *SessionJob) Resync() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	start := j.now()
	n := j.rs.ResyncAll(ctx)
	j.logger.Debug("resynced workspaces", zap.Int("count", n), zap.Duration("took", time.Since(start)))
}
