package memory

import (
	"context"
	"testing"
	"time"
)

func TestFileStorePutGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-1", map[string]any{"userIntent": "refund"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["userIntent"] != "refund" {
		t.Errorf("Data[userIntent] = %v, want refund", rec.Data["userIntent"])
	}
}

func TestFileStorePutMergesDisjointKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-merge", map[string]any{"userIntent": "refund"}, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "sess-merge", map[string]any{"account": "12345678"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "sess-merge")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["userIntent"] != "refund" {
		t.Errorf("Data[userIntent] = %v, earlier key must survive a disjoint patch", rec.Data["userIntent"])
	}
	if rec.Data["account"] != "12345678" {
		t.Errorf("Data[account] = %v, want 12345678", rec.Data["account"])
	}
}

func TestFileStorePutOverwritesPerField(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-ow", map[string]any{"userIntent": "refund", "account": "12345678"}, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "sess-ow", map[string]any{"userIntent": "balance"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "sess-ow")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["userIntent"] != "balance" {
		t.Errorf("Data[userIntent] = %v, want the patched value", rec.Data["userIntent"])
	}
	if rec.Data["account"] != "12345678" {
		t.Errorf("Data[account] = %v, untouched key must survive", rec.Data["account"])
	}
}

func TestFileStoreExpiredRecordNotMergedInto(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-stale", map[string]any{"userIntent": "refund"}, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := store.Put(ctx, "sess-stale", map[string]any{"account": "12345678"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "sess-stale")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.Data["userIntent"]; ok {
		t.Errorf("expired data must not leak into a fresh record: %v", rec.Data)
	}
	if rec.Data["account"] != "12345678" {
		t.Errorf("Data[account] = %v, want 12345678", rec.Data["account"])
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreExpiry(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-expiring", map[string]any{"a": 1}, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := store.Get(ctx, "sess-expiring"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestFileStoreTouchExtendsTTL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-touch", map[string]any{"a": 1}, 2*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := store.Touch(ctx, "sess-touch", time.Hour); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := store.Get(ctx, "sess-touch"); err != nil {
		t.Fatalf("expected record to survive after touch, got %v", err)
	}
}

func TestFileStoreTouchMissing(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Touch(context.Background(), "nope", time.Hour); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "sess-del", map[string]any{"a": 1}, time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "sess-del"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "sess-del"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "sess-reload", map[string]any{"foo": "bar"}, time.Hour); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := reloaded.Get(ctx, "sess-reload")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["foo"] != "bar" {
		t.Errorf("Data[foo] = %v, want bar", rec.Data["foo"])
	}
}
