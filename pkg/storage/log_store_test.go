package storage_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1kaiser/llm-consistency-vis/pkg/storage"
)

func TestFileLogStore_StoreAndRetrieve(t *testing.T) {
	store, err := storage.NewFileLogStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ref, err := store.Store(context.Background(), "host-abc12345", []byte("run log body"))
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if filepath.Base(ref) != "host-abc12345.log" {
		t.Errorf("unexpected reference %q", ref)
	}

	body, err := store.Retrieve(context.Background(), ref)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if string(body) != "run log body" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestFileLogStore_CreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".launcher", "logs")

	store, err := storage.NewFileLogStore(dir)
	if err != nil {
		t.Fatalf("failed to create store in nested dir: %v", err)
	}

	ref, err := store.Store(context.Background(), "run-1", []byte("x"))
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if !strings.HasPrefix(ref, dir) {
		t.Errorf("expected reference under %s, got %s", dir, ref)
	}
}
