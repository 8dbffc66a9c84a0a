package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/repository"
	"github.com/maheshrc27/postreview/internal/storage"
)

var errBoom = errors.New("boom")

type fakeIdentity struct {
	user *models.User
}

func (f *fakeIdentity) CurrentUser() *models.User {
	return f.user
}

type fakeReps struct {
	reps    []*models.CompanyRepresentative
	company *models.Company
	err     error
}

func (f *fakeReps) ListByProfileID(ctx context.Context, profileID string) ([]*models.CompanyRepresentative, error) {
	return f.reps, f.err
}

func (f *fakeReps) FirstCompany(ctx context.Context, profileID string) (*models.Company, error) {
	return f.company, f.err
}

// fakePosts returns results[i] for the i-th list call (the last one is
// reused) and blocks on gates[i] when it is set.
type fakePosts struct {
	mu        sync.Mutex
	results   [][]*models.Post
	gates     []chan struct{}
	calls     int
	companies []string
	listErr   error
	updateErr error
	updated   map[string]models.PostStatus
}

func (f *fakePosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return nil, nil
}

func (f *fakePosts) ListByCompanyID(ctx context.Context, companyID string) ([]*models.Post, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.companies = append(f.companies, companyID)
	var gate chan struct{}
	if i < len(f.gates) {
		gate = f.gates[i]
	}
	var result []*models.Post
	if len(f.results) > 0 {
		result = f.results[min(i, len(f.results)-1)]
	}
	err := f.listErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return result, err
}

func (f *fakePosts) UpdateStatus(ctx context.Context, id string, status models.PostStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updated == nil {
		f.updated = make(map[string]models.PostStatus)
	}
	if _, done := f.updated[id]; done {
		return repository.ErrNoRowsAffected
	}
	f.updated[id] = status
	return nil
}

func (f *fakePosts) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePosts) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

type fakeFeedback struct {
	mu        sync.Mutex
	created   []*models.PostFeedback
	entries   []*models.PostFeedback
	createErr error
	listErr   error
	lists     int
}

func (f *fakeFeedback) Create(ctx context.Context, fb *models.PostFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	fb.ID = "fb-new"
	fb.CreatedAt = time.Now()
	f.created = append(f.created, fb)
	return nil
}

func (f *fakeFeedback) ListByPostID(ctx context.Context, postID string) ([]*models.PostFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.PostFeedback
	for _, e := range f.entries {
		if e.PostID == postID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeFeedback) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeFeedback) Created() []*models.PostFeedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.PostFeedback(nil), f.created...)
}

type fakeAuth struct {
	mu         sync.Mutex
	session    *models.AuthSession
	signInErr  error
	signOuts   []string
	signOutErr error
	resets     []string
	resetErr   error
	passwords  []string
	events     authEvents
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.session, nil
}

func (f *fakeAuth) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts = append(f.signOuts, accessToken)
	return f.signOutErr
}

func (f *fakeAuth) Subscribe(sessionID string) (<-chan models.AuthEvent, func()) {
	return f.events.subscribe(sessionID)
}

func (f *fakeAuth) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords = append(f.passwords, newPassword)
	return nil
}

func (f *fakeAuth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return f.resetErr
}

func (f *fakeAuth) SignOuts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signOuts...)
}

type blobCall struct {
	bucket string
	key    string
	opts   storage.UploadOptions
}

type fakeBlobs struct {
	calls []blobCall
	err   error
}

func (f *fakeBlobs) Upload(ctx context.Context, bucket, key string, data []byte, opts storage.UploadOptions) (string, error) {
	f.calls = append(f.calls, blobCall{bucket: bucket, key: key, opts: opts})
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/" + bucket + "/" + key, nil
}

func reviewer() *models.User {
	confirmed := time.Now()
	return &models.User{ID: "u1", Email: "ana@agencia.com", EmailConfirmedAt: &confirmed}
}

func companyLink() []*models.CompanyRepresentative {
	return []*models.CompanyRepresentative{{ID: "r1", CompanyID: "c1", ProfileID: "u1", Email: "ana@agencia.com"}}
}

func newPost(id string, status models.PostStatus) *models.Post {
	return &models.Post{ID: id, Title: "Post " + id, Status: status, CompanyID: "c1"}
}
