package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

type AttachmentKind string

const (
	KindAudio  AttachmentKind = "audio"
	KindImage  AttachmentKind = "image"
	KindAvatar AttachmentKind = "avatar"
)

const (
	BucketFeedbackAudio  = "feedback_audio"
	BucketFeedbackImages = "feedback_images"
	BucketAvatars        = "avatars"
)

var allowedTypes = map[AttachmentKind]map[string]struct{}{
	KindAudio: {
		"m4a": {}, "mp3": {}, "aac": {}, "wav": {}, "ogg": {}, "amr": {},
	},
	KindImage: {
		"jpg": {}, "png": {}, "webp": {}, "gif": {}, "heif": {},
	},
	KindAvatar: {
		"jpg": {}, "png": {}, "webp": {},
	},
}

func ParseKind(s string) (AttachmentKind, bool) {
	k := AttachmentKind(s)
	_, ok := allowedTypes[k]
	return k, ok
}

func (k AttachmentKind) Bucket() string {
	switch k {
	case KindAudio:
		return BucketFeedbackAudio
	case KindAvatar:
		return BucketAvatars
	default:
		return BucketFeedbackImages
	}
}

type Attachment struct {
	Kind      AttachmentKind
	Extension string
	MIME      string
	Data      []byte
}

// Detect sniffs the content type of data and checks it against the types
// accepted for kind.
func Detect(kind AttachmentKind, data []byte) (*Attachment, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	allowed, ok := allowedTypes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown attachment kind %q", ErrUnsupportedType, kind)
	}

	fileType, err := filetype.Match(data)
	if err != nil || fileType == types.Unknown {
		return nil, ErrUnsupportedType
	}
	if _, ok := allowed[fileType.Extension]; !ok {
		return nil, fmt.Errorf("%w: %s is not allowed for %s", ErrUnsupportedType, fileType.Extension, kind)
	}

	return &Attachment{
		Kind:      kind,
		Extension: fileType.Extension,
		MIME:      fileType.MIME.Value,
		Data:      data,
	}, nil
}

// Key builds a unique object key such as audio_1718000000_V1StGXR8.m4a.
func (a *Attachment) Key(prefix string, now time.Time) (string, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = string(a.Kind)
	}
	return fmt.Sprintf("%s_%d_%s.%s", prefix, now.Unix(), id, a.Extension), nil
}
