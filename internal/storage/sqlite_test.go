package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gearforge/gearforge/internal/errs"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gearforge.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if err := s.Put(ctx, "gear:1", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := s.Get(ctx, "gear:1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != `{"id":"1"}` {
		t.Fatalf("unexpected value: %s", got)
	}

	if err := s.Delete(ctx, "gear:1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "gear:1"); err == nil {
		t.Fatal("expected not found after delete")
	}
}

func TestSQLiteStore_PutUpsertsExistingKey(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_ = s.Put(ctx, "k", []byte("v1"))
	_ = s.Put(ctx, "k", []byte("v2"))

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected upserted value v2, got %s", got)
	}
}

func TestSQLiteStore_GetMissingReturnsNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.Get(context.Background(), "ghost")
	if kind, ok := errs.KindOf(err); ok && kind != errs.NotFound {
		t.Fatalf("expected NotFound kind if typed, got %v", kind)
	} else if err == nil {
		t.Fatal("expected an error")
	}
}

func TestSQLiteStore_ListByPrefixOrdersKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	_ = s.Put(ctx, "patch:b", []byte("b"))
	_ = s.Put(ctx, "patch:a", []byte("a"))
	_ = s.Put(ctx, "gear:x", []byte("x"))

	keys, err := s.ListByPrefix(ctx, "patch:")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "patch:a" || keys[1] != "patch:b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
