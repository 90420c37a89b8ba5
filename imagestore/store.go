// Package imagestore turns a raw image payload into a durable reference URL.
// It stands in for an external blob service: a failed upload must fail the
// whole send, the store never keeps a dangling reference.
package imagestore

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "pingr/errors"
)

type Store interface {
	Save(payload string) (string, error)
}

// LocalStore writes decoded images under a directory served as static files.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save accepts either a data URI ("data:image/png;base64,...") or bare
// base64, sniffs the real content type, and persists the bytes under a
// generated name. Non-image payloads are rejected regardless of what the
// data URI claims.
func (s *LocalStore) Save(payload string) (string, error) {
	raw, err := decode(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrNotAnImage, err)
	}

	detected := mimetype.Detect(raw)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", apperrors.ErrNotAnImage, detected.String())
	}

	name := uuid.NewString() + detected.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), raw, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + name, nil
}

func decode(payload string) ([]byte, error) {
	if after, ok := strings.CutPrefix(payload, "data:"); ok {
		_, data, found := strings.Cut(after, ",")
		if !found {
			return nil, fmt.Errorf("malformed data URI")
		}
		payload = data
	}
	return base64.StdEncoding.DecodeString(payload)
}
