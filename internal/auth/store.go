package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Credential is the durable on-disk record of an OAuth2 grant.
//
// The refresh token survives across refreshes unless the provider rotates it,
// and is discarded only by explicit revocation.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Store reads and writes the credential file.
//
// Absence of the file means no grant has been performed yet.
type Store struct {
	path string
}

// NewStore creates a [Store] at the given path. An empty path selects the
// default location under the user config directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}

		path = filepath.Join(dir, "spin", "token.json")
	}

	return &Store{path: path}, nil
}

// Path returns the credential file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the stored credential. A missing file returns (nil, nil).
func (s *Store) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	return &cred, nil
}

// Save atomically replaces the credential file.
//
// The record is written to a temp file in the destination directory and
// renamed into place, so a crash mid-write never leaves a truncated
// credential behind. The file is readable only by the owning user.
func (s *Store) Save(cred *Credential) error {
	if cred == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write credential: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to restrict credential permissions: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace credential file: %w", err)
	}

	return nil
}

// Delete removes the credential file. Deleting an absent file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}

	return nil
}
