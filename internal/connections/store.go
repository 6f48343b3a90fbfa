package connections

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
	"github.com/queryowl/queryowl/internal/secret"
)

// Store is the registry of saved connection profiles, persisted as YAML in
// the data dir. Secrets are sealed through the Keeper before they touch disk;
// files written by older versions with plaintext secrets are re-sealed on
// first load.
type Store struct {
	mu     sync.RWMutex
	path   string
	conns  []models.Connection
	keeper *secret.Keeper
}

// NewStore loads (or initializes) the registry at dataDir/connections.yaml.
func NewStore(dataDir string, keeper *secret.Keeper) (*Store, error) {
	s := &Store{
		path:   filepath.Join(dataDir, "connections.yaml"),
		conns:  []models.Connection{},
		keeper: keeper,
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load connections: %w", err)
		}
		if err := s.migratePlaintext(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read connections file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.conns); err != nil {
		return fmt.Errorf("failed to parse connections file: %w", err)
	}
	return nil
}

// save persists the registry. Caller must hold the write lock.
func (s *Store) save() error {
	data, err := yaml.Marshal(s.conns)
	if err != nil {
		return fmt.Errorf("failed to marshal connections: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write connections file: %w", err)
	}
	return nil
}

// migratePlaintext seals any legacy plaintext secrets in place.
func (s *Store) migratePlaintext() error {
	migrated := 0
	for i := range s.conns {
		sec := s.conns[i].Secret
		if sec == "" || s.keeper.IsSealed(sec) {
			continue
		}
		sealed, err := s.keeper.Seal(sec)
		if err != nil {
			return fmt.Errorf("failed to migrate secret for %q: %w", s.conns[i].Name, err)
		}
		s.conns[i].Secret = sealed
		migrated++
	}
	if migrated == 0 {
		return nil
	}
	logger.Info("migrated plaintext connection secrets", "count", migrated)
	return s.save()
}

// List returns all profiles with secrets redacted, in stored order.
func (s *Store) List() []models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Connection, len(s.conns))
	for i, c := range s.conns {
		out[i] = c.Redacted()
	}
	return out
}

// Get returns the profile with the given id, secret still sealed.
func (s *Store) Get(id string) (models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conns {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Connection{}, &models.NotFoundError{Kind: "connection", ID: id}
}

// Create validates and persists a new profile. The caller supplies the secret
// in plaintext; it is sealed before the file is written. The new profile is
// not activated.
func (s *Store) Create(c models.Connection) (models.Connection, error) {
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	if err := c.Validate(true); err != nil {
		return models.Connection{}, err
	}

	sealed, err := s.keeper.Seal(c.Secret)
	if err != nil {
		return models.Connection{}, fmt.Errorf("failed to seal secret: %w", err)
	}

	c.ID = uuid.New().String()
	c.Secret = sealed
	c.CreatedAt = time.Now()
	c.LastConnectedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = append(s.conns, c)
	if err := s.save(); err != nil {
		s.conns = s.conns[:len(s.conns)-1]
		return models.Connection{}, err
	}
	return c.Redacted(), nil
}

// Update replaces a profile's fields. An empty incoming secret keeps the
// stored one; a non-empty one replaces it.
func (s *Store) Update(id string, c models.Connection) (models.Connection, error) {
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	if err := c.Validate(false); err != nil {
		return models.Connection{}, err
	}

	var sealed string
	if c.Secret != "" {
		var err error
		sealed, err = s.keeper.Seal(c.Secret)
		if err != nil {
			return models.Connection{}, fmt.Errorf("failed to seal secret: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conns {
		if s.conns[i].ID != id {
			continue
		}
		prev := s.conns[i]
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
		c.LastConnectedAt = prev.LastConnectedAt
		if sealed != "" {
			c.Secret = sealed
		} else {
			c.Secret = prev.Secret
		}
		s.conns[i] = c
		if err := s.save(); err != nil {
			s.conns[i] = prev
			return models.Connection{}, err
		}
		return c.Redacted(), nil
	}
	return models.Connection{}, &models.NotFoundError{Kind: "connection", ID: id}
}

// Delete removes a profile. Deactivating a live session for the id is the
// caller's job; the store only owns the file.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.conns {
		if c.ID == id {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return s.save()
		}
	}
	return &models.NotFoundError{Kind: "connection", ID: id}
}

// TouchLastConnected stamps a successful activation.
func (s *Store) TouchLastConnected(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conns {
		if s.conns[i].ID == id {
			now := time.Now()
			s.conns[i].LastConnectedAt = &now
			return s.save()
		}
	}
	return &models.NotFoundError{Kind: "connection", ID: id}
}

// Resolve returns the profile plus its plaintext secret, falling back to
// ~/.pgpass when none is stored.
func (s *Store) Resolve(id string) (models.Connection, string, error) {
	c, err := s.Get(id)
	if err != nil {
		return models.Connection{}, "", err
	}

	plaintext, err := s.ResolveSecret(c)
	if err != nil {
		return models.Connection{}, "", err
	}
	return c, plaintext, nil
}

// ResolveSecret opens a profile's sealed secret. When the profile has none,
// ~/.pgpass is consulted the way libpq would.
func (s *Store) ResolveSecret(c models.Connection) (string, error) {
	if c.Secret != "" {
		plaintext, err := s.keeper.Open(c.Secret)
		if err != nil {
			return "", fmt.Errorf("failed to open secret for %q: %w", c.Name, err)
		}
		return plaintext, nil
	}
	return lookupPgpass(c.Host, c.Port, c.Database, c.Username), nil
}
