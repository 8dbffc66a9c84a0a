package service

import (
	"context"
	"strings"
	"testing"

	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	mp3Bytes = append([]byte("ID3"), make([]byte, 32)...)
)

func TestUploadAttachment(t *testing.T) {
	blobs := &fakeBlobs{}
	svc := NewUploadService(blobs, zap.NewNop())

	url, err := svc.UploadAttachment(context.Background(), storage.KindAudio, mp3Bytes)
	require.NoError(t, err)

	require.Len(t, blobs.calls, 1)
	call := blobs.calls[0]
	assert.Equal(t, storage.BucketFeedbackAudio, call.bucket)
	assert.True(t, strings.HasPrefix(call.key, "audio_"))
	assert.True(t, strings.HasSuffix(call.key, ".mp3"))
	assert.Equal(t, 3600, call.opts.CacheSeconds)
	assert.False(t, call.opts.Upsert)
	assert.Equal(t, "https://cdn.example.com/feedback_audio/"+call.key, url)
}

func TestUploadAttachmentErrors(t *testing.T) {
	blobs := &fakeBlobs{}
	svc := NewUploadService(blobs, zap.NewNop())

	_, err := svc.UploadAttachment(context.Background(), storage.KindAudio, pngBytes)
	assert.ErrorIs(t, err, storage.ErrUnsupportedType)
	assert.Equal(t, "Formato de arquivo não suportado", UserMessage(err))
	assert.Empty(t, blobs.calls)

	blobs.err = errBoom
	_, err = svc.UploadAttachment(context.Background(), storage.KindImage, pngBytes)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "Erro ao fazer upload da imagem", UserMessage(err))

	_, err = svc.UploadAttachment(context.Background(), storage.KindAudio, mp3Bytes)
	assert.Equal(t, "Erro ao fazer upload do áudio", UserMessage(err))
}

type profileFixture struct {
	profiles *MockProfileRepository
	users    *MockUserRepository
	reps     *fakeReps
	blobs    *fakeBlobs
	revoked  []string
	svc      ProfileService
}

func (f *profileFixture) RevokeUser(userID string) int {
	f.revoked = append(f.revoked, userID)
	return 1
}

func newProfileFixture() *profileFixture {
	f := &profileFixture{
		profiles: new(MockProfileRepository),
		users:    new(MockUserRepository),
		reps:     &fakeReps{},
		blobs:    &fakeBlobs{},
	}
	f.svc = NewProfileService(f.profiles, f.reps, f.users, f.blobs, f, zap.NewNop())
	return f
}

func TestProfileOverview(t *testing.T) {
	f := newProfileFixture()
	f.profiles.On("GetByID", mock.Anything, "u1").Return(&models.Profile{ID: "u1", FullName: "Ana"}, nil)
	f.reps.company = &models.Company{ID: "c1", Name: "Agência"}

	overview, err := f.svc.Overview(context.Background(), reviewer())
	require.NoError(t, err)
	assert.Equal(t, "Ana", overview.Profile.FullName)
	assert.Equal(t, "Agência", overview.Company.Name)

	f.reps.company, f.reps.err = nil, errBoom
	overview, err = f.svc.Overview(context.Background(), reviewer())
	require.NoError(t, err, "a missing company does not fail the screen")
	assert.Nil(t, overview.Company)

	_, err = f.svc.Overview(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestProfileOverviewWithoutProfile(t *testing.T) {
	f := newProfileFixture()
	f.profiles.On("GetByID", mock.Anything, "u1").Return(nil, nil)

	_, err := f.svc.Overview(context.Background(), reviewer())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestUpdateAvatar(t *testing.T) {
	f := newProfileFixture()
	f.profiles.On("UpdateAvatar", mock.Anything, "u1", mock.MatchedBy(func(url string) bool {
		return strings.HasPrefix(url, "https://cdn.example.com/avatars/u1_")
	})).Return(nil)

	url, err := f.svc.UpdateAvatar(context.Background(), reviewer(), pngBytes)
	require.NoError(t, err)
	assert.Contains(t, url, "/avatars/u1_")

	require.Len(t, f.blobs.calls, 1)
	assert.True(t, f.blobs.calls[0].opts.Upsert)
	assert.Equal(t, "image/png", f.blobs.calls[0].opts.ContentType)
	f.profiles.AssertExpectations(t)

	_, err = f.svc.UpdateAvatar(context.Background(), reviewer(), mp3Bytes)
	assert.Equal(t, "Formato de arquivo não suportado", UserMessage(err))
}

func TestDeleteAccount(t *testing.T) {
	f := newProfileFixture()
	f.users.On("Remove", mock.Anything, "u1").Return(nil).Once()

	auth := signedInAuth()
	session := NewSession(auth, nil, zap.NewNop())
	require.NoError(t, session.SignIn(context.Background(), "ana@agencia.com", "Secreta#1"))

	require.NoError(t, f.svc.DeleteAccount(context.Background(), session))
	assert.False(t, session.IsAuthenticated())
	assert.Equal(t, []string{"u1"}, f.revoked)
	assert.Equal(t, []string{"token-1"}, auth.SignOuts())

	assert.ErrorIs(t, f.svc.DeleteAccount(context.Background(), session), ErrNotAuthenticated)
	f.users.AssertExpectations(t)
}

func TestDeleteAccountFailureKeepsSession(t *testing.T) {
	f := newProfileFixture()
	f.users.On("Remove", mock.Anything, "u1").Return(errBoom)

	session := NewSession(signedInAuth(), nil, zap.NewNop())
	require.NoError(t, session.SignIn(context.Background(), "ana@agencia.com", "Secreta#1"))

	assert.ErrorIs(t, f.svc.DeleteAccount(context.Background(), session), errBoom)
	assert.True(t, session.IsAuthenticated())
	assert.Empty(t, f.revoked)
}
