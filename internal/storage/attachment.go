// Package storage keeps requisition attachments on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("attachment exceeds size limit")

// AttachmentStore persists uploaded files and hands back an opaque reference
type AttachmentStore interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
	Remove(ctx context.Context, path string) error
}

type localStore struct {
	dir      string
	maxBytes int64
}

// NewLocalStore stores files under dir. maxBytes <= 0 disables the size limit.
func NewLocalStore(dir string, maxBytes int64) (AttachmentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStore{dir: dir, maxBytes: maxBytes}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename strips directories and anything outside a conservative charset
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "attachment"
	}
	return name
}

func (s *localStore) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, uuid.NewString()+"_"+sanitizeFilename(filename))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment: %w", err)
	}

	reader := content
	if s.maxBytes > 0 {
		reader = io.LimitReader(content, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, reader)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write attachment: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write attachment: %w", closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		_ = os.Remove(path)
		return "", ErrTooLarge
	}

	return filepath.ToSlash(path), nil
}

// Remove deletes a stored attachment. Paths outside the store are refused.
func (s *localStore) Remove(_ context.Context, path string) error {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.Dir(clean) != filepath.Clean(s.dir) {
		return fmt.Errorf("attachment %q is outside the upload dir", path)
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
