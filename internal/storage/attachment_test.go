package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreSaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 0)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	path, err := store.Save(context.Background(), "quote.pdf", strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(path, "_quote.pdf") {
		t.Errorf("expected stored name to keep original filename, got %s", path)
	}

	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Errorf("stored content = %q", data)
	}

	if err := store.Remove(context.Background(), path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.FromSlash(path)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected file to be gone, stat err = %v", err)
	}
	if err := store.Remove(context.Background(), path); err != nil {
		t.Errorf("removing a missing file should be a no-op, got %v", err)
	}
}

func TestLocalStoreSizeLimit(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, 4)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	if _, err := store.Save(context.Background(), "big.bin", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("oversized upload should not be kept, found %d files", len(entries))
	}

	if _, err := store.Save(context.Background(), "ok.bin", strings.NewReader("1234")); err != nil {
		t.Errorf("file at the limit should be accepted: %v", err)
	}
}

func TestLocalStoreRemoveOutsideDir(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := store.Remove(context.Background(), "/etc/passwd"); err == nil {
		t.Error("expected error for path outside the upload dir")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":       "report.pdf",
		"../../etc/passwd": "passwd",
		`C:\temp\a b.docx`: "a_b.docx",
		"..":               "attachment",
		"invoice (1).xlsx": "invoice_1_.xlsx",
		"":                 "attachment",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
