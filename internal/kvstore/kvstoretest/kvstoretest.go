// Package kvstoretest holds the behavior every kvstore backend must share.
package kvstoretest

import (
	"context"
	"errors"
	"testing"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore"
)

// Run exercises store against the kvstore contract.
func Run(t *testing.T, store kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "user-1/profile"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
	if err := store.Set(ctx, "user-1/profile", `{"date":"1990-05-15T08:30:00+05:30"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get(ctx, "user-1/profile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"date":"1990-05-15T08:30:00+05:30"}` {
		t.Fatalf("get = %q", got)
	}

	if err := store.Set(ctx, "user-1/profile", "replaced"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := store.Get(ctx, "user-1/profile"); got != "replaced" {
		t.Fatalf("after overwrite = %q, want whole-value replacement", got)
	}

	if err := store.Set(ctx, "user-2/profile", "other"); err != nil {
		t.Fatalf("set other key: %v", err)
	}
	if err := store.Delete(ctx, "user-1/profile"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "user-1/profile"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("get deleted = %v, want ErrNotFound", err)
	}
	if got, _ := store.Get(ctx, "user-2/profile"); got != "other" {
		t.Fatalf("unrelated key = %q, want other", got)
	}
	if err := store.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := store.Set(ctx, "user-1/empty", ""); err != nil {
		t.Fatalf("set empty value: %v", err)
	}
	if got, err := store.Get(ctx, "user-1/empty"); err != nil || got != "" {
		t.Fatalf("get empty value = %q, %v", got, err)
	}
	if err := store.Set(ctx, "  ", "v"); err == nil {
		t.Fatal("expected blank key error")
	}
}
