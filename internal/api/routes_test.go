package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	config "github.com/maheshrc27/postreview/configs"
	"github.com/maheshrc27/postreview/internal/api/handlers"
	"github.com/maheshrc27/postreview/internal/api/middleware"
	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/queue"
	"github.com/maheshrc27/postreview/internal/realtime"
	"github.com/maheshrc27/postreview/internal/repository"
	"github.com/maheshrc27/postreview/internal/service"
	"github.com/maheshrc27/postreview/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAPIKey = "public-anon-key"
	testSecret = "a-test-secret-that-is-long-enough-0123456789"
)

type memUsers struct {
	user    *models.User
	removed []string
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, bool, error) {
	if id == m.user.ID {
		return m.user, true, nil
	}
	return nil, false, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	if email == m.user.Email {
		return m.user, true, nil
	}
	return nil, false, nil
}

func (m *memUsers) Create(ctx context.Context, tx *sqlx.Tx, user *models.User) (string, error) {
	return "", nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return nil
}

func (m *memUsers) ConfirmEmail(ctx context.Context, id string) error {
	return nil
}

func (m *memUsers) Remove(ctx context.Context, id string) error {
	m.removed = append(m.removed, id)
	return nil
}

type memProfiles struct{}

func (memProfiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return &models.Profile{ID: id, FullName: "Ana Souza", Role: models.ProfileRoleUser, Email: "ana@agencia.com"}, nil
}

func (memProfiles) Create(ctx context.Context, tx *sqlx.Tx, profile *models.Profile) error {
	return nil
}

func (memProfiles) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	return nil
}

type memReps struct{}

func (memReps) ListByProfileID(ctx context.Context, profileID string) ([]*models.CompanyRepresentative, error) {
	return []*models.CompanyRepresentative{{ID: "r1", CompanyID: "c1", ProfileID: profileID}}, nil
}

func (memReps) FirstCompany(ctx context.Context, profileID string) (*models.Company, error) {
	return &models.Company{ID: "c1", Name: "Agência Sol"}, nil
}

type memPosts struct {
	mu    sync.Mutex
	posts []*models.Post
}

func (m *memPosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return nil, nil
}

func (m *memPosts) ListByCompanyID(ctx context.Context, companyID string) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPosts) UpdateStatus(ctx context.Context, id string, status models.PostStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == id && p.Status == models.PostStatusPending {
			p.Status = status
			return nil
		}
	}
	return repository.ErrNoRowsAffected
}

// setStatus changes a post without telling anyone, as another reviewer's
// write would look before its notification arrives.
func (m *memPosts) setStatus(id string, status models.PostStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == id {
			p.Status = status
		}
	}
}

func (m *memPosts) status(id string) models.PostStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID == id {
			return p.Status
		}
	}
	return ""
}

type memFeedback struct {
	mu      sync.Mutex
	entries []*models.PostFeedback
}

func (m *memFeedback) Create(ctx context.Context, fb *models.PostFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb.ID = "fb" + string(rune('0'+len(m.entries)))
	fb.CreatedAt = time.Now()
	m.entries = append([]*models.PostFeedback{fb}, m.entries...)
	return nil
}

func (m *memFeedback) ListByPostID(ctx context.Context, postID string) ([]*models.PostFeedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostFeedback
	for _, e := range m.entries {
		if e.PostID == postID {
			out = append(out, e)
		}
	}
	return out, nil
}

type nopMail struct{}

func (nopMail) EnqueuePasswordReset(ctx context.Context, payload queue.MailPayload) error {
	return nil
}

func (nopMail) EnqueueConfirmation(ctx context.Context, payload queue.MailPayload) error {
	return nil
}

type memBlobs struct{}

func (memBlobs) Upload(ctx context.Context, bucket, key string, data []byte, opts storage.UploadOptions) (string, error) {
	return "https://cdn.example.com/" + bucket + "/" + key, nil
}

type testServer struct {
	app      *fiber.App
	users    *memUsers
	posts    *memPosts
	feedback *memFeedback
	hub      *realtime.Hub
	ws       *service.Workspaces
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("Secreta#1"), bcrypt.MinCost)
	require.NoError(t, err)
	confirmed := time.Now()

	cfg := config.Config{
		PublicAPIKey: testAPIKey,
		JWTSecret:    testSecret,
		CookieName:   "postreview_session",
		FrontendURL:  "http://localhost:8081",
	}
	logger := zap.NewNop()

	users := &memUsers{user: &models.User{ID: "u1", Email: "ana@agencia.com", PasswordHash: string(hash), EmailConfirmedAt: &confirmed}}
	posts := &memPosts{posts: []*models.Post{
		{ID: "p1", Title: "Lançamento", Status: models.PostStatusPending, CompanyID: "c1"},
		{ID: "p2", Title: "Promoção", Status: models.PostStatusPending, CompanyID: "c1"},
		{ID: "p3", Title: "Bastidores", Status: models.PostStatusApproved, CompanyID: "c1"},
	}}
	feedback := &memFeedback{}
	hub := realtime.NewHub(logger)

	authService := service.NewAuthService(nil, users, memProfiles{}, nopMail{}, service.AuthConfig{
		Secret:     testSecret,
		SessionTTL: time.Hour,
	}, logger)

	ws := service.NewWorkspaces(service.WorkspaceDeps{
		Auth:       authService,
		Reps:       memReps{},
		Posts:      posts,
		Feedback:   feedback,
		Subscriber: hub,
		Logger:     logger,
	})
	t.Cleanup(ws.Close)

	app := fiber.New()
	Register(app, middleware.NewAuthMiddleware(cfg, ws, logger), Handlers{
		Auth:     handlers.NewAuthHandler(cfg, ws, authService, logger),
		Posts:    handlers.NewPostHandler(logger),
		Uploads:  handlers.NewUploadHandler(service.NewUploadService(memBlobs{}, logger), logger),
		Settings: handlers.NewSettingsHandler(cfg, service.NewProfileService(memProfiles{}, memReps{}, users, memBlobs{}, authService, logger)),
	})

	return &testServer{app: app, users: users, posts: posts, feedback: feedback, hub: hub, ws: ws}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("apikey", testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ana@agencia.com",
		"password": "Secreta#1",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "app", body["route"])

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestAPIKeyRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	resp, _ := s.send(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFailure(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "ana@agencia.com",
		"password": "errada",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Credenciais de login inválidas", body["error"])
	assert.Equal(t, "login", body["route"])
	assert.Zero(t, s.ws.Len())
}

func TestSessionRequired(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/posts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "login", body["route"])

	resp, _ = s.do(t, http.MethodGet, "/api/posts", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListPosts(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp, body := s.do(t, http.MethodGet, "/api/posts", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["posts"], 3)

	_, body = s.do(t, http.MethodGet, "/api/posts?status=pending", nil, token)
	assert.Len(t, body["posts"], 2)

	resp, _ = s.do(t, http.MethodGet, "/api/posts?status=archived", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/posts/p3", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Aprovado", body["status_label"])
	assert.Equal(t, false, body["actionable"])

	resp, _ = s.do(t, http.MethodGet, "/api/posts/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/posts/refresh", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["posts"], 3)
}

func TestApprovePost(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp, body := s.do(t, http.MethodPost, "/api/posts/p1/approve", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, models.PostStatusApproved, s.posts.status("p1"))

	resp, _ = s.do(t, http.MethodPost, "/api/posts/p1/approve", nil, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, body = s.do(t, http.MethodGet, "/api/posts/p1/feedback", nil, token)
	entries, _ := body["feedback"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "Post aprovado", entry["content"])
	assert.Equal(t, "Ana", entry["author_name"])
}

func TestApproveReviewedElsewhere(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	s.posts.setStatus("p1", models.PostStatusRejected)

	resp, body := s.do(t, http.MethodPost, "/api/posts/p1/approve", nil, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Este post já foi revisado", body["error"])
	assert.Equal(t, models.PostStatusRejected, s.posts.status("p1"))

	_, body = s.do(t, http.MethodGet, "/api/posts/p1", nil, token)
	assert.Equal(t, string(models.PostStatusRejected), body["status"])
}

func TestRejectPost(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp, body := s.do(t, http.MethodPost, "/api/posts/p2/reject", map[string]string{"comment": "  "}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Adicione pelo menos um comentário, áudio ou imagem.", body["error"])
	assert.Equal(t, models.PostStatusPending, s.posts.status("p2"))

	resp, body = s.do(t, http.MethodPost, "/api/posts/p2/reject", map[string]any{
		"comment":        "Trocar a foto de capa",
		"audio_url":      "https://cdn.example.com/feedback_audio/a.m4a",
		"audio_duration": 75,
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, models.PostStatusRejected, s.posts.status("p2"))

	_, body = s.do(t, http.MethodGet, "/api/posts/p2/feedback", nil, token)
	entry := body["feedback"].([]any)[0].(map[string]any)
	assert.Equal(t, "Trocar a foto de capa", entry["content"])
	assert.Equal(t, "1:15", entry["audio_duration"])
	assert.Equal(t, true, entry["is_important"])
}

func TestUploadAttachment(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "foto.png")
	require.NoError(t, err)
	_, err = part.Write(append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/image", &buf)
	req.Header.Set("apikey", testAPIKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body := s.send(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Contains(t, body["url"], "/feedback_images/image_")

	resp, _ = s.do(t, http.MethodPost, "/api/uploads/avatar", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/uploads/audio", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp, body := s.do(t, http.MethodGet, "/api/settings", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Agência Sol", body["company"].(map[string]any)["name"])

	resp, body = s.do(t, http.MethodPost, "/api/settings/password", map[string]string{
		"new_password":     "Nova#Senha1",
		"confirm_password": "Outra#Senha1",
	}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "As senhas não coincidem", body["error"])

	resp, _ = s.do(t, http.MethodPost, "/api/settings/password", map[string]string{
		"new_password":     "Nova#Senha1",
		"confirm_password": "Nova#Senha1",
	}, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	require.Equal(t, 1, s.ws.Len())

	resp, body := s.do(t, http.MethodPost, "/api/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "login", body["route"])
	assert.Zero(t, s.ws.Len())

	resp, _ = s.do(t, http.MethodGet, "/api/posts", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	resp, _ := s.do(t, http.MethodDelete, "/api/settings/account", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"u1"}, s.users.removed)

	require.Eventually(t, func() bool { return s.ws.Len() == 0 }, time.Second, 5*time.Millisecond)

	resp, _ = s.do(t, http.MethodGet, "/api/posts", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/auth/register", map[string]string{
		"full_name":        "Novo Cliente",
		"email":            "novo@agencia.com",
		"password":         "Secreta#1",
		"confirm_password": "Secreta#2",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "As senhas não coincidem", body["error"])
}

// openStream runs a streaming request until the server ends it and returns
// the raw body.
func (s *testServer) openStream(t *testing.T, path, token string) <-chan string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("apikey", testAPIKey)
	req.Header.Set("Authorization", "Bearer "+token)

	out := make(chan string, 1)
	go func() {
		resp, err := s.app.Test(req, -1)
		if err != nil {
			out <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		out <- string(raw)
	}()
	return out
}

func TestFeedbackStream(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	require.NoError(t, s.feedback.Create(context.Background(), &models.PostFeedback{
		PostID: "p1", Type: models.FeedbackNote, Author: "equipe@agencia.com", AuthorType: models.AuthorUser,
	}))
	require.Equal(t, 1, s.hub.Len(), "the post collection follows the posts table")

	body := s.openStream(t, "/api/posts/p1/feedback/stream", token)
	require.Eventually(t, func() bool { return s.hub.Len() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond) // first frame goes out after the subscription

	resp, _ := s.do(t, http.MethodPost, "/api/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw string
	select {
	case raw = <-body:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end with the session")
	}
	assert.True(t, strings.HasPrefix(raw, "event: feedback\ndata: ["), raw)
	assert.Contains(t, raw, `"author_name":"Equipe"`)
	assert.Contains(t, raw, "event: signed_out\ndata: {\"route\":\"login\"}")
	require.Eventually(t, func() bool { return s.hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPostsStream(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	body := s.openStream(t, "/api/posts/stream?status=pending", token)

	// Nothing observable marks the first frame; let it go out before the
	// session ends.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, s.hub.Len())

	resp, _ := s.do(t, http.MethodPost, "/api/logout", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw string
	select {
	case raw = <-body:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end with the session")
	}
	require.True(t, strings.HasPrefix(raw, "event: posts\ndata: "), raw)
	first := strings.SplitN(strings.TrimPrefix(raw, "event: posts\ndata: "), "\n", 2)[0]
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &snapshot))
	assert.Len(t, snapshot["posts"], 2)
	assert.Contains(t, raw, "event: signed_out")
	assert.Zero(t, s.hub.Len())
}
