package storage

import (
	"context"
	"os"
	"testing"
)

// MySQL tests need a live server; they follow the same opt-in convention as
// the rest of the corpus: skip unless TEST_MYSQL_DSN names a reachable one.
// Example: "user:password@tcp(localhost:3306)/gearforge_test?parseTime=true".
func testMySQLDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("skipping MySQL tests: TEST_MYSQL_DSN not set")
	}
	return dsn
}

func TestMySQLStore_PutGetDelete(t *testing.T) {
	dsn := testMySQLDSN(t)
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	key := "gear:mysql-roundtrip"
	if err := s.Put(ctx, key, []byte("v1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("unexpected value: %s", got)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(ctx, key); err == nil {
		t.Fatal("expected not found after delete")
	}
}

func TestMySQLStore_PutUpsertsExistingKey(t *testing.T) {
	dsn := testMySQLDSN(t)
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	key := "gear:mysql-upsert"
	_ = s.Put(ctx, key, []byte("v1"))
	_ = s.Put(ctx, key, []byte("v2"))
	defer s.Delete(ctx, key)

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("expected upserted value v2, got %s", got)
	}
}

func TestMySQLStore_ListByPrefix(t *testing.T) {
	dsn := testMySQLDSN(t)
	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	_ = s.Put(ctx, "patch:mysql-a", []byte("a"))
	_ = s.Put(ctx, "patch:mysql-b", []byte("b"))
	defer s.Delete(ctx, "patch:mysql-a")
	defer s.Delete(ctx, "patch:mysql-b")

	keys, err := s.ListByPrefix(ctx, "patch:mysql-")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}
}
