package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/realtime"
	"github.com/maheshrc27/postreview/internal/repository"
	"go.uber.org/zap"
)

type FeedbackState struct {
	Entries []*models.PostFeedback
	Loading bool
}

// FeedbackChannel is the live thread of a single post.
type FeedbackChannel struct {
	identity   Identity
	repo       repository.FeedbackRepository
	subscriber ChangeSubscriber
	postID     string
	logger     *zap.Logger

	seq atomic.Uint64

	mu      sync.RWMutex
	entries []*models.PostFeedback
	loading bool
	sub     *realtime.Subscription
	cancel  context.CancelFunc
	done    chan struct{}

	watchers notifier
}

func NewFeedbackChannel(
	identity Identity,
	repo repository.FeedbackRepository,
	subscriber ChangeSubscriber,
	postID string,
	logger *zap.Logger) *FeedbackChannel {
	return &FeedbackChannel{
		identity:   identity,
		repo:       repo,
		subscriber: subscriber,
		postID:     postID,
		logger:     logger.With(zap.String("post_id", postID)),
	}
}

func (c *FeedbackChannel) PostID() string {
	return c.postID
}

// Fetch loads the thread, newest first. Errors are logged and produce an
// empty thread.
func (c *FeedbackChannel) Fetch(ctx context.Context) []*models.PostFeedback {
	seq := c.seq.Add(1)
	c.setLoading(true)

	var entries []*models.PostFeedback
	if c.identity.CurrentUser() == nil {
		c.logger.Debug("feedback fetch without a signed-in user")
	} else {
		var err error
		entries, err = c.repo.ListByPostID(ctx, c.postID)
		if err != nil {
			c.logger.Warn("fetch feedback", zap.Error(err))
			entries = nil
		}
	}
	if entries == nil {
		entries = []*models.PostFeedback{}
	}

	c.mu.Lock()
	if seq == c.seq.Load() {
		c.entries = entries
		c.loading = false
	}
	c.mu.Unlock()
	c.watchers.notify()

	return cloneFeedback(entries)
}

// Open fetches the thread and refetches it whenever an entry of this post
// changes, until Close.
func (c *FeedbackChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return nil
	}
	sub, err := c.subscriber.Subscribe(feedbackTable, realtime.Eq("post_id", c.postID))
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("subscribe to feedback: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.sub, c.cancel, c.done = sub, cancel, done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for range sub.Events() {
			c.Fetch(runCtx)
		}
	}()

	c.Fetch(runCtx)
	return nil
}

// Close detaches from change notifications. It is safe to call more than
// once.
func (c *FeedbackChannel) Close() {
	c.mu.Lock()
	sub, cancel, done := c.sub, c.cancel, c.done
	c.sub, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Close()
	<-done
}

func (c *FeedbackChannel) Snapshot() FeedbackState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return FeedbackState{Entries: cloneFeedback(c.entries), Loading: c.loading}
}

func (c *FeedbackChannel) Watch() (<-chan struct{}, func()) {
	return c.watchers.watch()
}

func (c *FeedbackChannel) setLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
	c.watchers.notify()
}

func cloneFeedback(entries []*models.PostFeedback) []*models.PostFeedback {
	out := make([]*models.PostFeedback, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}
