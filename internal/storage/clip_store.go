package storage

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

// ClipStore writes recorded clips under generated, collision-free keys.
type ClipStore struct {
	up     Uploader
	prefix string
	now    func() time.Time
}

func NewClipStore(up Uploader, prefix string) *ClipStore {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ClipStore{up: up, prefix: prefix, now: time.Now}
}

// ObjectName is <prefix>audio_<unix-ms>_<8 hex><ext>.
func (s *ClipStore) ObjectName(clip models.AudioClip) string {
	ms := strconv.FormatInt(s.now().UnixMilli(), 10)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return s.prefix + "audio_" + ms + "_" + suffix + clip.Extension()
}

func (s *ClipStore) Store(ctx context.Context, clip models.AudioClip) (models.Locator, error) {
	const op = "ClipStore.Store"

	if err := clip.Validate(); err != nil {
		return "", utils.ValidationError(op, err.Error(), nil)
	}
	if s.up == nil {
		return "", utils.StorageError(op, "uploader is not configured", nil)
	}

	loc, err := s.up.Upload(ctx, s.ObjectName(clip), clip.MediaType, bytes.NewReader(clip.Data))
	if err != nil {
		if utils.IsKind(err, utils.KindStorage) {
			return "", err
		}
		return "", utils.StorageError(op, "failed to upload clip", err)
	}
	return loc, nil
}
