package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postreview/internal/metrics"
	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/queue"
	"github.com/maheshrc27/postreview/internal/repository"
	"github.com/maheshrc27/postreview/internal/transfer"
	"github.com/maheshrc27/postreview/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// Messages returned by the auth backend. They are the keys of the
// translation table.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgEmailNotConfirmed  = "Email not confirmed"
	msgEmailRequired      = "Email is required"
	msgPasswordRequired   = "Password is required"
	msgInvalidEmailFormat = "Invalid email format"
	msgEmailInUse         = "Email already in use"
	msgPasswordTooWeak    = "Password is too weak"
	msgTooManyRequests    = "Too many requests"
	msgServerError        = "Server error"
	msgInvalidToken       = "Invalid token"
	msgInvalidRedirect    = "Invalid redirect URL"
)

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

var ErrSessionNotFound = errors.New("session not found or expired")

type MailQueue interface {
	EnqueuePasswordReset(ctx context.Context, payload queue.MailPayload) error
	EnqueueConfirmation(ctx context.Context, payload queue.MailPayload) error
}

type AuthConfig struct {
	Secret      string
	SessionTTL  time.Duration
	SignInRate  rate.Limit
	SignInBurst int
	BcryptCost  int
	// ConfirmURL and ResetURL receive a token query parameter in mails.
	ConfirmURL string
	ResetURL   string
}

type SignUpInput struct {
	FullName string
	Email    string
	Phone    string
	Password string
}

type authSession struct {
	userID    string
	expiresAt time.Time
}

type AuthService struct {
	db       *sqlx.DB
	users    repository.UserRepository
	profiles repository.ProfileRepository
	mail     MailQueue
	cfg      AuthConfig
	logger   *zap.Logger
	limiter  *keyedLimiter
	events   authEvents
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]authSession
}

func NewAuthService(
	db *sqlx.DB,
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	mail MailQueue,
	cfg AuthConfig,
	logger *zap.Logger) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.SignInRate == 0 {
		cfg.SignInRate = rate.Inf
	}
	return &AuthService{
		db:       db,
		users:    users,
		profiles: profiles,
		mail:     mail,
		cfg:      cfg,
		logger:   logger,
		limiter:  newKeyedLimiter(cfg.SignInRate, cfg.SignInBurst),
		now:      time.Now,
		sessions: make(map[string]authSession),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, &AuthError{Message: msgEmailRequired}
	}
	if password == "" {
		return nil, &AuthError{Message: msgPasswordRequired}
	}
	if !s.limiter.Allow(email) {
		metrics.SignIns.WithLabelValues("throttled").Inc()
		return nil, &AuthError{Message: msgTooManyRequests}
	}

	user, ok, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("sign in lookup", zap.Error(err))
		return nil, &AuthError{Message: msgServerError}
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.SignIns.WithLabelValues("rejected").Inc()
		return nil, &AuthError{Message: msgInvalidCredentials}
	}
	if user.EmailConfirmedAt == nil {
		metrics.SignIns.WithLabelValues("unconfirmed").Inc()
		return nil, &AuthError{Message: msgEmailNotConfirmed}
	}

	sessionID := uuid.NewString()
	expiresAt := s.now().Add(s.cfg.SessionTTL)
	token, err := utils.GenerateToken(s.cfg.Secret, transfer.SessionClaims{
		UserID:    user.ID,
		SessionID: sessionID,
		Purpose:   transfer.PurposeSession,
	}, s.cfg.SessionTTL)
	if err != nil {
		s.logger.Error("sign token", zap.Error(err))
		return nil, &AuthError{Message: msgServerError}
	}

	s.mu.Lock()
	s.sessions[sessionID] = authSession{userID: user.ID, expiresAt: expiresAt}
	s.mu.Unlock()

	metrics.SignIns.WithLabelValues("ok").Inc()
	s.events.publish(models.AuthEvent{Type: models.AuthSignedIn, UserID: user.ID, SessionID: sessionID})

	return &models.AuthSession{
		AccessToken: token,
		SessionID:   sessionID,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// SignOut ends the session behind accessToken. Unknown or already expired
// tokens are not an error.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	claims, err := utils.ValidateToken(s.cfg.Secret, accessToken, transfer.PurposeSession)
	if err != nil {
		return nil
	}
	s.endSession(claims.SessionID)
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.session(accessToken)
	if err != nil {
		return nil, err
	}

	user, ok, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// Subscribe streams the events of sessionID, and those that concern no
// single session, until cancel is called. An empty sessionID streams every
// event.
func (s *AuthService) Subscribe(sessionID string) (<-chan models.AuthEvent, func()) {
	return s.events.subscribe(sessionID)
}

func (s *AuthService) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	claims, err := s.session(accessToken)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, claims.UserID, newPassword)
}

func (s *AuthService) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	email = normalizeEmail(email)
	if email == "" {
		return &AuthError{Message: msgEmailRequired}
	}
	if !utils.ValidateEmail(email) {
		return &AuthError{Message: msgInvalidEmailFormat}
	}
	if redirectTo == "" {
		redirectTo = s.cfg.ResetURL
	}
	if !sameOrigin(redirectTo, s.cfg.ResetURL) {
		s.logger.Warn("password reset with foreign redirect", zap.String("redirect_to", redirectTo))
		return &AuthError{Message: msgInvalidRedirect}
	}
	if !s.limiter.Allow("reset:" + email) {
		return &AuthError{Message: msgTooManyRequests}
	}

	user, ok, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("reset lookup", zap.Error(err))
		return &AuthError{Message: msgServerError}
	}
	if !ok {
		// Unknown addresses get the same answer as known ones.
		s.logger.Debug("password reset for unknown email")
		return nil
	}

	link, err := s.tokenLink(redirectTo, user.ID, transfer.PurposeRecovery, time.Hour)
	if err != nil {
		s.logger.Error("reset link", zap.Error(err))
		return &AuthError{Message: msgServerError}
	}

	if err := s.mail.EnqueuePasswordReset(ctx, queue.MailPayload{Email: user.Email, Link: link}); err != nil {
		s.logger.Error("enqueue password reset", zap.Error(err))
		return &AuthError{Message: msgServerError}
	}

	s.events.publish(models.AuthEvent{Type: models.AuthPasswordRecovery, UserID: user.ID})
	return nil
}

// RecoverPassword sets a new password from a recovery link and ends every
// open session of the user.
func (s *AuthService) RecoverPassword(ctx context.Context, recoveryToken, newPassword string) error {
	claims, err := utils.ValidateToken(s.cfg.Secret, recoveryToken, transfer.PurposeRecovery)
	if err != nil {
		return &AuthError{Message: msgInvalidToken}
	}
	if err := s.setPassword(ctx, claims.UserID, newPassword); err != nil {
		return err
	}
	s.RevokeUser(claims.UserID)
	return nil
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, &AuthError{Message: msgEmailRequired}
	}
	if !utils.ValidateEmail(email) {
		return nil, &AuthError{Message: msgInvalidEmailFormat}
	}
	if in.Password == "" {
		return nil, &AuthError{Message: msgPasswordRequired}
	}
	if !StrongPassword(in.Password) {
		return nil, &AuthError{Message: msgPasswordTooWeak}
	}

	_, exists, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, &AuthError{Message: msgServerError}
	}
	if exists {
		return nil, &AuthError{Message: msgEmailInUse}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, &AuthError{Message: msgServerError}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("begin sign up", zap.Error(err))
		return nil, &AuthError{Message: msgServerError}
	}
	defer tx.Rollback()

	user := &models.User{Email: email, PasswordHash: string(hash)}
	if _, err := s.users.Create(ctx, tx, user); err != nil {
		return nil, &AuthError{Message: msgServerError}
	}

	var phone *string
	if p := strings.TrimSpace(in.Phone); p != "" {
		phone = &p
	}
	profile := &models.Profile{
		ID:       user.ID,
		FullName: strings.TrimSpace(in.FullName),
		Role:     models.ProfileRoleUser,
		Email:    email,
		Phone:    phone,
	}
	if err := s.profiles.Create(ctx, tx, profile); err != nil {
		return nil, &AuthError{Message: msgServerError}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("commit sign up", zap.Error(err))
		return nil, &AuthError{Message: msgServerError}
	}

	link, err := s.tokenLink(s.cfg.ConfirmURL, user.ID, transfer.PurposeConfirm, 24*time.Hour)
	if err == nil {
		err = s.mail.EnqueueConfirmation(ctx, queue.MailPayload{Email: email, Link: link})
	}
	if err != nil {
		s.logger.Warn("confirmation mail not queued", zap.String("user_id", user.ID), zap.Error(err))
	}

	return user, nil
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	claims, err := utils.ValidateToken(s.cfg.Secret, token, transfer.PurposeConfirm)
	if err != nil {
		return &AuthError{Message: msgInvalidToken}
	}
	if err := s.users.ConfirmEmail(ctx, claims.UserID); err != nil {
		return &AuthError{Message: msgServerError}
	}
	return nil
}

// ExpireSessions ends every session past its expiry and reports how many
// were ended.
func (s *AuthService) ExpireSessions(now time.Time) int {
	s.mu.Lock()
	var expired []models.AuthEvent
	for id, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, id)
			expired = append(expired, models.AuthEvent{Type: models.AuthSignedOut, UserID: sess.userID, SessionID: id})
		}
	}
	s.mu.Unlock()

	for _, ev := range expired {
		s.events.publish(ev)
	}
	s.limiter.prune()
	return len(expired)
}

// RevokeUser ends every session of userID.
func (s *AuthService) RevokeUser(userID string) int {
	s.mu.Lock()
	var revoked []string
	for id, sess := range s.sessions {
		if sess.userID == userID {
			delete(s.sessions, id)
			revoked = append(revoked, id)
		}
	}
	s.mu.Unlock()

	for _, id := range revoked {
		s.events.publish(models.AuthEvent{Type: models.AuthSignedOut, UserID: userID, SessionID: id})
	}
	return len(revoked)
}

func (s *AuthService) session(accessToken string) (*transfer.SessionClaims, error) {
	claims, err := utils.ValidateToken(s.cfg.Secret, accessToken, transfer.PurposeSession)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	sess, ok := s.sessions[claims.SessionID]
	s.mu.Unlock()

	if !ok || !s.now().Before(sess.expiresAt) {
		return nil, ErrSessionNotFound
	}
	return claims, nil
}

func (s *AuthService) endSession(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		s.events.publish(models.AuthEvent{Type: models.AuthSignedOut, UserID: sess.userID, SessionID: sessionID})
	}
}

func (s *AuthService) setPassword(ctx context.Context, userID, newPassword string) error {
	if newPassword == "" {
		return &AuthError{Message: msgPasswordRequired}
	}
	if !StrongPassword(newPassword) {
		return &AuthError{Message: msgPasswordTooWeak}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return &AuthError{Message: msgServerError}
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return &AuthError{Message: msgServerError}
	}

	s.events.publish(models.AuthEvent{Type: models.AuthUserUpdated, UserID: userID})
	return nil
}

func (s *AuthService) tokenLink(base, userID, purpose string, ttl time.Duration) (string, error) {
	token, err := utils.GenerateToken(s.cfg.Secret, transfer.SessionClaims{UserID: userID, Purpose: purpose}, ttl)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sameOrigin reports whether target has the scheme and host of base.
// Recovery tokens only travel to the frontend that asked for them.
func sameOrigin(target, base string) bool {
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return false
	}
	return strings.EqualFold(t.Scheme, b.Scheme) && strings.EqualFold(t.Host, b.Host) && t.User == nil
}

// StrongPassword reports whether pw has at least eight characters with an
// upper-case letter, a lower-case letter, a digit and a symbol.
func StrongPassword(pw string) bool {
	if len([]rune(pw)) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit && strings.ContainsAny(pw, passwordSymbols)
}

type authEvents struct {
	mu   sync.Mutex
	next int
	subs map[int]*authSubscription
}

// authSubscription receives the events of one session plus the events that
// carry no session. An empty sessionID receives everything.
type authSubscription struct {
	sessionID string
	ch        chan models.AuthEvent
}

func (a *authSubscription) wants(ev models.AuthEvent) bool {
	return a.sessionID == "" || ev.SessionID == "" || ev.SessionID == a.sessionID
}

func (e *authEvents) subscribe(sessionID string) (<-chan models.AuthEvent, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[int]*authSubscription)
	}
	id := e.next
	e.next++
	sub := &authSubscription{sessionID: sessionID, ch: make(chan models.AuthEvent, 32)}
	e.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(sub.ch)
		})
	}
}

func (e *authEvents) publish(ev models.AuthEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subs {
		if !sub.wants(ev) {
			continue
		}
		deliver(sub.ch, ev)
	}
}

// deliver never blocks. A full buffer drops the new event, except a
// SIGNED_OUT, which evicts the oldest pending event instead: the session
// must always learn that it ended.
func deliver(ch chan models.AuthEvent, ev models.AuthEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		if ev.Type != models.AuthSignedOut {
			return
		}
		select {
		case <-ch:
		default:
		}
	}
}

// keyedLimiter keeps one token bucket per key, e.g. per e-mail address.
type keyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newKeyedLimiter(r rate.Limit, b int) *keyedLimiter {
	if b <= 0 {
		b = 1
	}
	return &keyedLimiter{limiters: make(map[string]*rate.Limiter), r: r, b: b}
}

func (l *keyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// prune forgets buckets that have refilled completely.
func (l *keyedLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, limiter := range l.limiters {
		if limiter.Tokens() >= float64(l.b) {
			delete(l.limiters, key)
		}
	}
}
