package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	t.Run("saves and loads a credential", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "nested", "token.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		want := &Credential{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
			Scopes:       []string{"playlist-read-private"},
		}

		if err := store.Save(want); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("failed to load credential: %v", err)
		}

		if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken {
			t.Errorf("expected tokens to roundtrip, got %+v", got)
		}

		if !got.ExpiresAt.Equal(want.ExpiresAt) {
			t.Errorf("expected expiry %v, got %v", want.ExpiresAt, got.ExpiresAt)
		}
	})

	t.Run("restricts file permissions", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "token.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if err := store.Save(&Credential{AccessToken: "secret"}); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		info, err := os.Stat(store.Path())
		if err != nil {
			t.Fatalf("failed to stat credential file: %v", err)
		}

		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("expected mode 0600, got %o", perm)
		}
	})

	t.Run("returns nil for an absent file", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		cred, err := store.Load()
		if err != nil {
			t.Fatalf("expected no error for absent file, got %v", err)
		}

		if cred != nil {
			t.Errorf("expected nil credential, got %+v", cred)
		}
	})

	t.Run("fails on a corrupted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		store, err := NewStore(path)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if _, err := store.Load(); err == nil {
			t.Error("expected parse error for corrupted file")
		}
	})

	t.Run("rejects a nil credential", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "token.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if err := store.Save(nil); err == nil {
			t.Error("expected error saving nil credential")
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store, err := NewStore(filepath.Join(t.TempDir(), "token.json"))
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if err := store.Save(&Credential{AccessToken: "access"}); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		if err := store.Delete(); err != nil {
			t.Fatalf("failed to delete credential: %v", err)
		}

		if err := store.Delete(); err != nil {
			t.Errorf("expected second delete to succeed, got %v", err)
		}

		if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
			t.Error("expected credential file to be removed")
		}
	})

	t.Run("defaults under the user config directory", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		store, err := NewStore("")
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}

		if !strings.Contains(store.Path(), filepath.Join("spin", "token.json")) {
			t.Errorf("expected default path under spin/, got %s", store.Path())
		}
	})
}
