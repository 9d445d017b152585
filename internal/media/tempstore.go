package media

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/amillerrr/media-ingest/internal/metrics"
	"github.com/amillerrr/media-ingest/pkg/models"
)

// tempNameBytes is the entropy in each staged file name. Names come from
// crypto/rand so concurrent requests cannot collide.
const tempNameBytes = 16

// TempStore stages upload streams on the local filesystem.
type TempStore struct {
	dir string
	log *slog.Logger
}

// NewTempStore creates a TempStore rooted at dir, creating it if needed.
func NewTempStore(dir string, log *slog.Logger) (*TempStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create staging dir %s: %v", models.ErrIO, dir, err)
	}
	return &TempStore{dir: dir, log: log}, nil
}

// Save writes r to a fresh random path and returns it. On a write error no
// partial file is left behind.
func (t *TempStore) Save(r io.Reader) (string, error) {
	name, err := randomToken(tempNameBytes)
	if err != nil {
		return "", fmt.Errorf("%w: generate temp name: %v", models.ErrIO, err)
	}
	path := filepath.Join(t.dir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", models.ErrIO, err)
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		t.Remove(path)
		return "", fmt.Errorf("%w: write temp file: %v", models.ErrIO, err)
	}

	if err := file.Close(); err != nil {
		t.Remove(path)
		return "", fmt.Errorf("%w: close temp file: %v", models.ErrIO, err)
	}

	return path, nil
}

// Remove deletes a staged file. Cleanup is best-effort: failures are
// logged and counted, never escalated.
func (t *TempStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		metrics.TempFilesOrphaned.Inc()
		t.log.Warn("Failed to remove temp file", "path", path, "error", err)
	}
}

// randomToken returns n cryptographically random bytes in URL-safe text
// form.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
