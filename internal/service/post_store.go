package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/maheshrc27/postreview/internal/metrics"
	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/realtime"
	"github.com/maheshrc27/postreview/internal/repository"
	"go.uber.org/zap"
)

const (
	postsTable    = "posts"
	feedbackTable = "post_feedback"

	approvalMessage       = "Post aprovado"
	adjustmentPlaceholder = "Ajustes solicitados"
	fallbackAuthor        = "Usuário"
)

type ChangeSubscriber interface {
	Subscribe(table string, filter *realtime.Filter) (*realtime.Subscription, error)
}

// RejectInput is what the adjustment composer sends with a rejection.
type RejectInput struct {
	Comment       string
	AudioURL      string
	AudioDuration int
	ImageURL      string
}

// Validate requires at least one of comment, audio or image.
func (in RejectInput) Validate() error {
	if strings.TrimSpace(in.Comment) == "" && in.AudioURL == "" && in.ImageURL == "" {
		return ErrAttachmentRequired
	}
	return nil
}

type PostsState struct {
	Posts   []*models.Post
	Loading bool
	Err     error
}

// PostStore holds the posts of the reviewer's company and keeps them in
// sync with the database.
type PostStore struct {
	identity   Identity
	reps       repository.RepresentativeRepository
	posts      repository.PostRepository
	feedback   repository.FeedbackRepository
	subscriber ChangeSubscriber
	logger     *zap.Logger

	seq atomic.Uint64

	mu       sync.RWMutex
	items    []*models.Post
	inflight int
	err      error
	stopped  bool
	sub      *realtime.Subscription
	cancel   context.CancelFunc
	done     chan struct{}

	watchers notifier
}

func NewPostStore(
	identity Identity,
	reps repository.RepresentativeRepository,
	posts repository.PostRepository,
	feedback repository.FeedbackRepository,
	subscriber ChangeSubscriber,
	logger *zap.Logger) *PostStore {
	return &PostStore{
		identity:   identity,
		reps:       reps,
		posts:      posts,
		feedback:   feedback,
		subscriber: subscriber,
		logger:     logger,
	}
}

// LoadAll fetches the company's posts. When several loads overlap only the
// last one issued updates the state; earlier results are dropped. On failure
// the previously loaded posts are kept and the error is recorded.
func (s *PostStore) LoadAll(ctx context.Context) error {
	seq := s.seq.Add(1)

	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	s.watchers.notify()

	posts, err := s.fetch(ctx)

	s.mu.Lock()
	s.inflight--
	stale := seq != s.seq.Load() || s.stopped
	if !stale {
		if err != nil {
			s.err = err
		} else {
			s.items = posts
			s.err = nil
		}
	}
	s.mu.Unlock()
	s.watchers.notify()

	switch {
	case stale:
		metrics.PostLoads.WithLabelValues("stale").Inc()
		s.logger.Debug("discarding superseded post load", zap.Uint64("seq", seq))
	case err != nil:
		metrics.PostLoads.WithLabelValues("error").Inc()
		s.logger.Warn("load posts", zap.Error(err))
	default:
		metrics.PostLoads.WithLabelValues("ok").Inc()
	}
	return err
}

// Refetch is LoadAll for user-initiated refreshes.
func (s *PostStore) Refetch(ctx context.Context) error {
	return s.LoadAll(ctx)
}

func (s *PostStore) fetch(ctx context.Context) ([]*models.Post, error) {
	user := s.identity.CurrentUser()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	reps, err := s.reps.ListByProfileID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve company: %w", err)
	}
	if len(reps) == 0 {
		return nil, ErrNoCompanyFound
	}
	if len(reps) > 1 {
		s.logger.Warn("user represents several companies, using the first",
			zap.String("user_id", user.ID),
			zap.Int("links", len(reps)))
	}

	posts, err := s.posts.ListByCompanyID(ctx, reps[0].CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *PostStore) Approve(ctx context.Context, postID string) error {
	user := s.identity.CurrentUser()
	if user == nil {
		s.setErr(ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	if err := s.posts.UpdateStatus(ctx, postID, models.PostStatusApproved); err != nil {
		return s.decisionFailed(ctx, "approve", postID, err)
	}
	metrics.ReviewDecisions.WithLabelValues(string(models.PostStatusApproved)).Inc()

	content := approvalMessage
	status := models.PostStatusApproved
	s.recordFeedback(ctx, &models.PostFeedback{
		PostID:      postID,
		Type:        models.FeedbackStatusChange,
		Content:     &content,
		Author:      authorOf(user),
		AuthorType:  models.AuthorAdmin,
		IsImportant: false,
		Status:      &status,
	})

	s.reloadAfterDecision(ctx, postID)
	return nil
}

// Reject sends a post back for adjustments. An empty comment is replaced by
// a fixed placeholder so the thread never shows an empty entry.
func (s *PostStore) Reject(ctx context.Context, postID string, in RejectInput) error {
	user := s.identity.CurrentUser()
	if user == nil {
		s.setErr(ErrNotAuthenticated)
		return ErrNotAuthenticated
	}

	if err := s.posts.UpdateStatus(ctx, postID, models.PostStatusRejected); err != nil {
		return s.decisionFailed(ctx, "reject", postID, err)
	}
	metrics.ReviewDecisions.WithLabelValues(string(models.PostStatusRejected)).Inc()

	content := strings.TrimSpace(in.Comment)
	if content == "" {
		content = adjustmentPlaceholder
	}
	status := models.PostStatusRejected
	fb := &models.PostFeedback{
		PostID:      postID,
		Type:        models.FeedbackResponse,
		Content:     &content,
		Author:      authorOf(user),
		AuthorType:  models.AuthorAdmin,
		IsImportant: true,
		Status:      &status,
	}
	if in.AudioURL != "" {
		audioURL, duration := in.AudioURL, in.AudioDuration
		fb.AudioURL = &audioURL
		fb.AudioDuration = &duration
	}
	if in.ImageURL != "" {
		imageURL := in.ImageURL
		fb.ImageURL = &imageURL
	}
	s.recordFeedback(ctx, fb)

	s.reloadAfterDecision(ctx, postID)
	return nil
}

// decisionFailed reports a status write that did not happen. A post that
// someone else reviewed first is a conflict: the list is reloaded to show
// its new status and the store error is left alone.
func (s *PostStore) decisionFailed(ctx context.Context, verb, postID string, err error) error {
	if errors.Is(err, repository.ErrNoRowsAffected) {
		s.reloadAfterDecision(ctx, postID)
		return fmt.Errorf("%s post %s: %w", verb, postID, ErrAlreadyReviewed)
	}
	err = fmt.Errorf("%s post %s: %w", verb, postID, err)
	s.setErr(err)
	return err
}

// reloadAfterDecision refreshes the list once a decision is stored. The
// decision stands even when the reload fails; that error stays in the
// store state.
func (s *PostStore) reloadAfterDecision(ctx context.Context, postID string) {
	if err := s.LoadAll(ctx); err != nil {
		s.logger.Debug("reload after review", zap.String("post_id", postID), zap.Error(err))
	}
}

// recordFeedback writes a thread entry for a status change. A failure is
// logged and counted but never undoes the status change.
func (s *PostStore) recordFeedback(ctx context.Context, fb *models.PostFeedback) {
	if err := s.feedback.Create(ctx, fb); err != nil {
		metrics.FeedbackWriteFailures.Inc()
		s.logger.Warn("record feedback",
			zap.String("post_id", fb.PostID),
			zap.String("type", string(fb.Type)),
			zap.Error(err))
	}
}

// Start loads the posts and reloads them on every change to the posts
// table until Stop is called.
func (s *PostStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return nil
	}
	sub, err := s.subscriber.Subscribe(postsTable, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("subscribe to posts: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.sub, s.cancel, s.done = sub, cancel, done
	s.stopped = false
	s.mu.Unlock()

	go s.follow(runCtx, sub, done)

	return s.LoadAll(runCtx)
}

func (s *PostStore) follow(ctx context.Context, sub *realtime.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		s.logger.Debug("posts changed", zap.String("type", string(ev.Type)))
		_ = s.LoadAll(ctx)
	}
}

// Stop releases the subscription and forgets the loaded posts. Loads that
// finish afterwards leave the state empty.
func (s *PostStore) Stop() {
	s.mu.Lock()
	sub, cancel, done := s.sub, s.cancel, s.done
	s.sub, s.cancel, s.done = nil, nil, nil
	s.stopped = true
	s.mu.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Close()
	<-done

	s.seq.Add(1)
	s.mu.Lock()
	s.items = nil
	s.err = nil
	s.mu.Unlock()
	s.watchers.notify()
}

func (s *PostStore) Snapshot() PostsState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]*models.Post, 0, len(s.items))
	for _, p := range s.items {
		cp := *p
		posts = append(posts, &cp)
	}
	return PostsState{Posts: posts, Loading: s.inflight > 0, Err: s.err}
}

// Filter returns the posts with the given status; "" or "all" returns every
// post.
func (s *PostStore) Filter(status string) []*models.Post {
	posts := s.Snapshot().Posts
	if status == "" || status == "all" {
		return posts
	}

	filtered := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if string(p.Status) == status {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func (s *PostStore) Get(postID string) (*models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.items {
		if p.ID == postID {
			cp := *p
			return &cp, true
		}
	}
	return nil, false
}

func (s *PostStore) Watch() (<-chan struct{}, func()) {
	return s.watchers.watch()
}

func (s *PostStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.watchers.notify()
}

func authorOf(user *models.User) string {
	if user.Email != "" {
		return user.Email
	}
	return fallbackAuthor
}
