package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := SetJSON(ctx, store, "user_portfolio_a@b.co", []string{"bonds"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetJSON(ctx, store, "tmp", 1); err != nil {
		t.Fatalf("set tmp: %v", err)
	}
	if err := store.Delete(ctx, "tmp"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := GetJSON[[]string](ctx, reopened, "user_portfolio_a@b.co")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0] != "bonds" {
		t.Fatalf("unexpected value %v", got)
	}
	if _, ok, _ := reopened.Get(ctx, "tmp"); ok {
		t.Fatalf("deleted key came back after reopen")
	}
}

func TestFileStoreFailedWriteLeavesStateUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(ctx, "kept", json.RawMessage(`1`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A directory at the target path makes every rename fail.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(path, "blocker"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := store.Set(ctx, "new", json.RawMessage(`2`)); err == nil {
		t.Fatalf("expected set to fail")
	}
	if _, ok, _ := store.Get(ctx, "new"); ok {
		t.Fatalf("failed set must not be visible")
	}

	if err := store.Delete(ctx, "kept"); err == nil {
		t.Fatalf("expected delete to fail")
	}
	err = store.Update(ctx, []string{"kept"}, func(map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		return map[string]json.RawMessage{"kept": json.RawMessage(`3`)}, nil
	})
	if err == nil {
		t.Fatalf("expected update to fail")
	}
	got, ok, err := store.Get(ctx, "kept")
	if err != nil || !ok || string(got) != "1" {
		t.Fatalf("expected original value 1, got %s ok=%v err=%v", got, ok, err)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenFileStore(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestFileStoreSetThenGetProperty(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)
	properties.Property("get returns the last value set", prop.ForAll(
		func(key, s string) bool {
			value, _ := json.Marshal(s)
			if err := store.Set(ctx, key, value); err != nil {
				return false
			}
			got, ok, err := store.Get(ctx, key)
			return err == nil && ok && bytes.Equal(got, value)
		},
		gen.Identifier(),
		gen.AlphaString(),
	))
	properties.TestingRun(t)
}
