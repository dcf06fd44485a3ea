// Package attachment stores files patients attach to consultation requests
// and hands back opaque references to them.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge           = errors.New("attachment exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("attachment content type is not allowed")
	ErrEmpty              = errors.New("attachment is empty")
	ErrNotFound           = errors.New("attachment not found")
)

// AllowedContentTypes maps accepted MIME types to the extension stored on disk.
var AllowedContentTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// Store accepts binary payloads and returns a reference usable verbatim as a
// consultation's attachment reference.
type Store interface {
	Save(ctx context.Context, contentType string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// LocalStore keeps attachments as files under one directory.
type LocalStore struct {
	dir     string
	maxSize int64
}

func NewLocalStore(dir string, maxSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &LocalStore{dir: dir, maxSize: maxSize}, nil
}

func (s *LocalStore) Save(ctx context.Context, contentType string, r io.Reader) (string, error) {
	ext, ok := AllowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}

	ref := path.Join("attachments", uuid.NewString()+ext)
	full := s.fullPath(ref)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("write attachment: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("close attachment: %w", closeErr)
	case n == 0:
		err = ErrEmpty
	case n > s.maxSize:
		err = ErrTooLarge
	case ctx.Err() != nil:
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(full)
		return "", err
	}

	return ref, nil
}

func (s *LocalStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, ErrNotFound
	}

	f, err := os.Open(s.fullPath(ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// Delete removes a stored attachment. Deleting a missing one is not an error.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if !validRef(ref) {
		return ErrNotFound
	}
	if err := os.Remove(s.fullPath(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

func validRef(ref string) bool {
	return strings.HasPrefix(ref, "attachments/") && !strings.Contains(ref, "..")
}

func (s *LocalStore) fullPath(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}
