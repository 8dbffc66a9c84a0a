package service

import (
	"errors"

	"github.com/maheshrc27/postreview/internal/storage"
)

var (
	ErrNotAuthenticated   = errors.New("user not authenticated")
	ErrNoCompanyFound     = errors.New("no company found for user")
	ErrAttachmentRequired = errors.New("comment, audio or image required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrAlreadyReviewed    = errors.New("post already reviewed")
)

// AuthError carries one of the auth backend's message strings. The message
// is the key of the translation table, never shown as is.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// AuthMessageError is an auth failure already translated for the user.
type AuthMessageError struct {
	Message string
	Err     error
}

func (e *AuthMessageError) Error() string {
	return e.Message
}

func (e *AuthMessageError) Unwrap() error {
	return e.Err
}

// UploadError reports a failed attachment upload with a readable message.
type UploadError struct {
	Kind storage.AttachmentKind
	Err  error
}

func (e *UploadError) Error() string {
	if errors.Is(e.Err, storage.ErrUnsupportedType) || errors.Is(e.Err, storage.ErrEmptyFile) {
		return "Formato de arquivo não suportado"
	}
	switch e.Kind {
	case storage.KindAudio:
		return "Erro ao fazer upload do áudio"
	case storage.KindAvatar:
		return "Erro ao atualizar a foto de perfil"
	default:
		return "Erro ao fazer upload da imagem"
	}
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UserMessage renders any error returned by this package as a sentence that
// can be shown to the reviewer.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var authMsg *AuthMessageError
	var upload *UploadError
	switch {
	case errors.As(err, &authMsg):
		return authMsg.Message
	case errors.As(err, &upload):
		return upload.Error()
	case errors.Is(err, ErrNotAuthenticated):
		return "Usuário não autenticado"
	case errors.Is(err, ErrNoCompanyFound):
		return "Nenhuma empresa encontrada para este usuário"
	case errors.Is(err, ErrAttachmentRequired):
		return "Adicione pelo menos um comentário, áudio ou imagem."
	case errors.Is(err, ErrPasswordMismatch):
		return "As senhas não coincidem"
	case errors.Is(err, ErrProfileNotFound):
		return "Perfil não encontrado"
	case errors.Is(err, ErrAlreadyReviewed):
		return "Este post já foi revisado"
	}
	return "Ocorreu um erro. Tente novamente."
}
