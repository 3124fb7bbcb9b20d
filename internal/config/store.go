package config

import (
	"sync"
)

// Store owns the active configuration and its backing file.
//
// Snapshot hands out copies; Replace swaps the whole value. Nothing mutates a
// Config in place once it has been handed out.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// NewStore wraps an already-loaded configuration.
func NewStore(loaded Loaded) *Store {
	return &Store{path: loaded.Path, cfg: loaded.Config}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the current configuration by value.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace persists cfg and then makes it the active snapshot.
// On a save error the previous snapshot stays active.
func (s *Store) Replace(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := Save(s.path, cfg); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// Reload re-reads the backing file. Parse failures fall back to defaults as Load does.
func (s *Store) Reload() (Config, []Warning, error) {
	loaded, err := Load(s.path)
	if err != nil {
		return Config{}, nil, err
	}

	s.mu.Lock()
	s.cfg = loaded.Config
	s.mu.Unlock()
	return loaded.Config, loaded.Warnings, nil
}
