package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://localhost:3000/uploads/")
	ctx := context.Background()

	url, err := store.Put(ctx, "support_attachments/2025/09/a.txt", strings.NewReader("hello"), 5, "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:3000/uploads/support_attachments/2025/09/a.txt" {
		t.Fatalf("unexpected url %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "support_attachments", "2025", "09", "a.txt"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("file not written: %q, %v", data, err)
	}

	if err := store.Delete(ctx, "support_attachments/2025/09/a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "support_attachments/2025/09/a.txt"); err != nil {
		t.Fatalf("deleting a missing file must succeed: %v", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "http://x")
	for _, key := range []string{"../etc/passwd", "a/../../b", "", "/"} {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), 1, ""); err == nil {
			t.Fatalf("key %q: expected error", key)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.PNG":    "image/png",
		"b.pdf":    "application/pdf",
		"c.docx":   "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"d":        "application/octet-stream",
		"logs.zip": "application/zip",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}
