// Package credentials keeps the FIRMS API key in a per-user JSON file.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// KeyName is the JSON field holding the API key.
const KeyName = "firms_api_key"

// ErrNotFound means the file is absent or holds no key.
var ErrNotFound = errors.New("no stored FIRMS API key")

// Store reads and writes {"firms_api_key": "..."} at a fixed path.
type Store struct {
	path string
}

// NewStore returns a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load returns the stored key. A missing file or empty key yields
// ErrNotFound; any other error means the file exists but is unreadable.
func (s *Store) Load() (string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}

	v := s.viper()
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read credentials %s: %w", s.path, err)
	}
	key := strings.TrimSpace(v.GetString(KeyName))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// Save writes key to the file, creating its directory if needed, and
// restricts the file to its owner.
func (s *Store) Save(key string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials dir %s: %w", dir, err)
		}
	}

	v := s.viper()
	v.Set(KeyName, strings.TrimSpace(key))
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write credentials %s: %w", s.path, err)
	}
	// WriteConfigAs keeps the mode of an existing file.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("chmod credentials %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) viper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	v.SetConfigPermissions(0o600)
	return v
}
