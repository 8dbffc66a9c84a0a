package service

import (
	"context"
	"sync"

	"github.com/maheshrc27/postreview/internal/metrics"
	"github.com/maheshrc27/postreview/internal/repository"
	"go.uber.org/zap"
)

type WorkspaceDeps struct {
	Auth       Authenticator
	Reps       repository.RepresentativeRepository
	Posts      repository.PostRepository
	Feedback   repository.FeedbackRepository
	Subscriber ChangeSubscriber
	Logger     *zap.Logger
}

// Workspace is everything one signed-in reviewer works with: the session
// and the live post collection of their company.
type Workspace struct {
	Session *Session
	Posts   *PostStore

	deps       *WorkspaceDeps
	stopListen func()
	cancel     context.CancelFunc
	done       chan struct{}
	once       sync.Once
}

// OpenFeedback returns a thread channel for postID bound to this
// workspace's session. The caller opens and closes it.
func (w *Workspace) OpenFeedback(postID string) *FeedbackChannel {
	return NewFeedbackChannel(w.Session, w.deps.Feedback, w.deps.Subscriber, postID, w.deps.Logger)
}

// Done is closed when the workspace is torn down.
func (w *Workspace) Done() <-chan struct{} {
	return w.done
}

func (w *Workspace) teardown() {
	w.once.Do(func() {
		w.cancel()
		w.stopListen()
		w.Posts.Stop()
		close(w.done)
	})
}

// Workspaces holds one workspace per signed-in session.
type Workspaces struct {
	deps WorkspaceDeps

	mu    sync.RWMutex
	items map[string]*Workspace
}

func NewWorkspaces(deps WorkspaceDeps) *Workspaces {
	return &Workspaces{
		deps:  deps,
		items: make(map[string]*Workspace),
	}
}

// SignIn authenticates a reviewer and starts their post collection. The
// workspace is torn down as soon as the session signs out for any reason.
func (ws *Workspaces) SignIn(ctx context.Context, email, password string) (*Workspace, error) {
	session := NewSession(ws.deps.Auth, nil, ws.deps.Logger)
	if err := session.SignIn(ctx, email, password); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := &Workspace{
		Session: session,
		Posts:   NewPostStore(session, ws.deps.Reps, ws.deps.Posts, ws.deps.Feedback, ws.deps.Subscriber, ws.deps.Logger),
		deps:    &ws.deps,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	changes, stopWatch := session.Watch()
	w.stopListen = session.Listen(runCtx)

	sessionID := session.SessionID()
	ws.mu.Lock()
	ws.items[sessionID] = w
	ws.mu.Unlock()
	metrics.ActiveWorkspaces.Inc()

	go func() {
		defer stopWatch()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-changes:
				if !session.IsAuthenticated() {
					ws.remove(sessionID)
					return
				}
			}
		}
	}()

	if err := w.Posts.Start(runCtx); err != nil {
		ws.deps.Logger.Warn("initial post load", zap.String("session_id", sessionID), zap.Error(err))
	}
	return w, nil
}

func (ws *Workspaces) Lookup(sessionID string) (*Workspace, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	w, ok := ws.items[sessionID]
	return w, ok
}

// SignOut ends the session and tears its workspace down.
func (ws *Workspaces) SignOut(ctx context.Context, sessionID string) {
	w, ok := ws.Lookup(sessionID)
	if !ok {
		return
	}
	w.Session.SignOut(ctx)
	ws.remove(sessionID)
}

// ResetPassword starts password recovery for an address. It needs no
// signed-in session.
func (ws *Workspaces) ResetPassword(ctx context.Context, email, redirectTo string) error {
	return NewSession(ws.deps.Auth, nil, ws.deps.Logger).ResetPassword(ctx, email, redirectTo)
}

const resyncConcurrency = 10

// ResyncAll refetches the posts of every workspace, a few at a time.
func (ws *Workspaces) ResyncAll(ctx context.Context) int {
	ws.mu.RLock()
	all := make([]*Workspace, 0, len(ws.items))
	for _, w := range ws.items {
		all = append(all, w)
	}
	ws.mu.RUnlock()

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, resyncConcurrency)

	for _, w := range all {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(w *Workspace) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := w.Posts.Refetch(ctx); err != nil {
				ws.deps.Logger.Debug("resync workspace", zap.String("session_id", w.Session.SessionID()), zap.Error(err))
			}
		}(w)
	}

	wg.Wait()
	return len(all)
}

func (ws *Workspaces) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.items)
}

// Close tears every workspace down.
func (ws *Workspaces) Close() {
	ws.mu.Lock()
	ids := make([]string, 0, len(ws.items))
	for id := range ws.items {
		ids = append(ids, id)
	}
	ws.mu.Unlock()

	for _, id := range ids {
		ws.remove(id)
	}
}

func (ws *Workspaces) remove(sessionID string) {
	ws.mu.Lock()
	w, ok := ws.items[sessionID]
	delete(ws.items, sessionID)
	ws.mu.Unlock()

	if !ok {
		return
	}
	metrics.ActiveWorkspaces.Dec()
	w.teardown()
	ws.deps.Logger.Info("workspace closed", zap.String("session_id", sessionID))
}
