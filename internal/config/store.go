package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"encodec-converter/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// TOMLStore persists settings in a single TOML file on disk.
type TOMLStore struct {
	path string
}

// NewTOMLStore creates a TOML-backed settings store.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// AppDirName is the per-user directory below home holding settings, the
// encode lock and locally installed tools.
const AppDirName = ".encodec-converter"

// DefaultPath is the settings file shared by the desktop app and the CLI.
func DefaultPath() (string, error) {
	return expandPath("~/" + AppDirName + "/settings.toml")
}

// LockPath is the cross-process encode lock. It stays in the home directory
// even when settings come from a custom file, so every front end shares it.
func LockPath() (string, error) {
	return expandPath("~/" + AppDirName + "/encode.lock")
}

// Path returns the backing file.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing. Keys absent
// from the file keep their default values.
func (s *TOMLStore) Load() (domain.Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	return Normalize(cfg), nil
}

// Save validates and writes settings, creating parent directories.
func (s *TOMLStore) Save(cfg domain.Settings) error {
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
