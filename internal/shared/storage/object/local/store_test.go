package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"studyai-backend/internal/shared/storage/object"
)

func TestPutOpenDelete(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	key := "owner/1700000000000-abcd.txt"

	if err := store.Put(ctx, key, "text/plain", strings.NewReader("hello"), 5); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound after delete, got %v", err)
	}
}

func TestPutRefusesOverwrite(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	key := "owner/same.txt"

	if err := store.Put(ctx, key, "text/plain", strings.NewReader("first"), 5); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	err := store.Put(ctx, key, "text/plain", strings.NewReader("second"), 6)
	if !errors.Is(err, object.ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "first" {
		t.Fatalf("original object was modified: %q", data)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Delete(context.Background(), "owner/missing.pdf"); err != nil {
		t.Fatalf("expected nil for missing object, got %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"../escape.txt", "/abs/path.txt", ""} {
		if err := store.Put(ctx, key, "text/plain", strings.NewReader("x"), 1); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}
