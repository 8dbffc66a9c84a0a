package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/postreview/internal/models"
	"go.uber.org/zap"
)

type Route string

const (
	RouteLogin Route = "login"
	RouteApp   Route = "app"
)

// Navigator moves the reviewer between the signed-out and signed-in areas.
type Navigator interface {
	Navigate(route Route)
}

type NavigatorFunc func(route Route)

func (f NavigatorFunc) Navigate(route Route) { f(route) }

// Authenticator is the password auth capability the session signs in
// against.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	Subscribe(sessionID string) (<-chan models.AuthEvent, func())
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// Identity exposes the signed-in user to the stores.
type Identity interface {
	CurrentUser() *models.User
}

type SessionState struct {
	User  *models.User
	Error string
	Route Route
}

// Session owns the reviewer's identity. It is the only writer of the
// current user; stores read it through Identity.
type Session struct {
	auth   Authenticator
	nav    Navigator
	logger *zap.Logger

	mu        sync.RWMutex
	user      *models.User
	token     string
	sessionID string
	expiresAt time.Time
	lastErr   string
	route     Route

	watchers notifier
}

func NewSession(auth Authenticator, nav Navigator, logger *zap.Logger) *Session {
	return &Session{
		auth:   auth,
		nav:    nav,
		logger: logger,
		route:  RouteLogin,
	}
}

// SignIn authenticates and, on success, moves to the app area. A failure is
// returned as an AuthMessageError and kept as the session's last error until
// the next attempt.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()

	as, err := s.auth.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		msg := TranslateAuthError(err.Error())
		s.logger.Info("sign in failed", zap.Error(err))

		s.mu.Lock()
		s.lastErr = msg
		s.mu.Unlock()
		s.watchers.notify()

		return &AuthMessageError{Message: msg, Err: err}
	}

	s.mu.Lock()
	s.user = as.User
	s.token = as.AccessToken
	s.sessionID = as.SessionID
	s.expiresAt = as.ExpiresAt
	s.mu.Unlock()

	s.navigate(RouteApp)
	return nil
}

// SignOut ends the session. The local state is cleared even when the
// backend call fails.
func (s *Session) SignOut(ctx context.Context) {
	if token := s.AccessToken(); token != "" {
		if err := s.auth.SignOut(ctx, token); err != nil {
			s.logger.Warn("sign out", zap.Error(err))
		}
	}
	s.clear()
}

// Listen subscribes to auth events and handles them until ctx is done or
// stop is called. A SIGNED_OUT for this session signs the reviewer out.
func (s *Session) Listen(ctx context.Context) (stop func()) {
	events, cancel := s.auth.Subscribe(s.SessionID())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.handleAuthEvent(ev)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Session) handleAuthEvent(ev models.AuthEvent) {
	if ev.Type != models.AuthSignedOut {
		return
	}

	s.mu.RLock()
	mine := s.user != nil && (ev.SessionID == s.sessionID || (ev.SessionID == "" && ev.UserID == s.user.ID))
	s.mu.RUnlock()

	if mine {
		s.logger.Info("session ended by auth backend", zap.String("session_id", ev.SessionID))
		s.clear()
	}
}

func (s *Session) ResetPassword(ctx context.Context, email, redirectTo string) error {
	if strings.TrimSpace(email) == "" {
		return &AuthMessageError{Message: "Por favor, digite seu e-mail", Err: &AuthError{Message: msgEmailRequired}}
	}
	if err := s.auth.ResetPasswordForEmail(ctx, email, redirectTo); err != nil {
		return &AuthMessageError{Message: TranslateAuthError(err.Error()), Err: err}
	}
	return nil
}

func (s *Session) UpdatePassword(ctx context.Context, newPassword, confirm string) error {
	if newPassword != confirm {
		return &AuthMessageError{Message: UserMessage(ErrPasswordMismatch), Err: ErrPasswordMismatch}
	}

	token := s.AccessToken()
	if token == "" {
		return ErrNotAuthenticated
	}
	if err := s.auth.UpdatePassword(ctx, token, newPassword); err != nil {
		return &AuthMessageError{Message: TranslateAuthError(err.Error()), Err: err}
	}
	return nil
}

func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) IsAuthenticated() bool {
	return s.CurrentUser() != nil
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) Route() Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.route
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionState{User: s.user, Error: s.lastErr, Route: s.route}
}

func (s *Session) Watch() (<-chan struct{}, func()) {
	return s.watchers.watch()
}

func (s *Session) clear() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.navigate(RouteLogin)
}

func (s *Session) navigate(route Route) {
	s.mu.Lock()
	s.route = route
	s.mu.Unlock()

	if s.nav != nil {
		s.nav.Navigate(route)
	}
	s.watchers.notify()
}
