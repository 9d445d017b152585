package media

import (
	"fmt"

	"github.com/amillerrr/media-ingest/pkg/models"
)

// keyRandomBytes is the entropy in each object key. 32 bytes makes
// collisions cryptographically negligible - no uniqueness check is ever
// performed against existing keys.
const keyRandomBytes = 32

// ThumbnailKeyPrefix namespaces stored thumbnails.
const ThumbnailKeyPrefix = "thumbnails"

// Allowed thumbnail content types and their key extensions.
var thumbnailExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// VideoKey derives a fresh object key for a video, namespaced by its
// geometry classification.
func VideoKey(classification models.Classification) (string, error) {
	token, err := randomToken(keyRandomBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return fmt.Sprintf("%s/%s.mp4", classification, token), nil
}

// ThumbnailKey derives a fresh object key for a thumbnail of the given
// content type.
func ThumbnailKey(contentType string) (string, error) {
	ext, ok := thumbnailExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedMediaType, contentType)
	}
	token, err := randomToken(keyRandomBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return fmt.Sprintf("%s/%s%s", ThumbnailKeyPrefix, token, ext), nil
}

// IsAllowedThumbnailType reports whether contentType is accepted for
// thumbnail uploads.
func IsAllowedThumbnailType(contentType string) bool {
	_, ok := thumbnailExtensions[contentType]
	return ok
}
