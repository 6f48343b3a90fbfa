package favorites

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/queryowl/queryowl/internal/models"
)

// Manager stores saved SQL snippets as YAML in the data dir.
type Manager struct {
	mu        sync.RWMutex
	path      string
	favorites []models.Favorite
}

// NewManager loads (or initializes) dataDir/favorites.yaml.
func NewManager(dataDir string) (*Manager, error) {
	m := &Manager{
		path:      filepath.Join(dataDir, "favorites.yaml"),
		favorites: []models.Favorite{},
	}

	if _, err := os.Stat(m.path); err == nil {
		if err := m.load(); err != nil {
			return nil, fmt.Errorf("failed to load favorites: %w", err)
		}
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read favorites file: %w", err)
	}
	if err := yaml.Unmarshal(data, &m.favorites); err != nil {
		return fmt.Errorf("failed to parse favorites: %w", err)
	}
	return nil
}

// save persists the list. Caller must hold the write lock.
func (m *Manager) save() error {
	data, err := yaml.Marshal(m.favorites)
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write favorites file: %w", err)
	}
	return nil
}

// List returns all favorites, most recently used first, never-used ones after
// that by name.
func (m *Manager) List() []models.Favorite {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Favorite, len(m.favorites))
	copy(out, m.favorites)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].LastUsedAt, out[j].LastUsedAt
		switch {
		case li != nil && lj != nil:
			return li.After(*lj)
		case li != nil:
			return true
		case lj != nil:
			return false
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Get returns one favorite by id.
func (m *Manager) Get(id string) (models.Favorite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.favorites {
		if f.ID == id {
			return f, nil
		}
	}
	return models.Favorite{}, &models.NotFoundError{Kind: "favorite", ID: id}
}

// Add validates and persists a new favorite. Names are unique
// case-insensitively.
func (m *Manager) Add(f models.Favorite) (models.Favorite, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.SQL = strings.TrimSpace(f.SQL)
	f.Description = strings.TrimSpace(f.Description)
	if f.Name == "" {
		return models.Favorite{}, &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if f.SQL == "" {
		return models.Favorite{}, &models.ValidationError{Field: "sql", Reason: "must not be empty"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.favorites {
		if strings.EqualFold(existing.Name, f.Name) {
			return models.Favorite{}, &models.ValidationError{Field: "name", Reason: fmt.Sprintf("favorite %q already exists", f.Name)}
		}
	}

	f.ID = uuid.New().String()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	f.LastUsedAt = nil
	f.UsageCount = 0

	m.favorites = append(m.favorites, f)
	if err := m.save(); err != nil {
		m.favorites = m.favorites[:len(m.favorites)-1]
		return models.Favorite{}, err
	}
	return f, nil
}

// Update replaces a favorite's editable fields, keeping its usage stats.
func (m *Manager) Update(id string, f models.Favorite) (models.Favorite, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.SQL = strings.TrimSpace(f.SQL)
	if f.Name == "" {
		return models.Favorite{}, &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if f.SQL == "" {
		return models.Favorite{}, &models.ValidationError{Field: "sql", Reason: "must not be empty"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.favorites {
		if existing.ID != id && strings.EqualFold(existing.Name, f.Name) {
			return models.Favorite{}, &models.ValidationError{Field: "name", Reason: fmt.Sprintf("favorite %q already exists", f.Name)}
		}
	}

	for i := range m.favorites {
		if m.favorites[i].ID != id {
			continue
		}
		prev := m.favorites[i]
		m.favorites[i].Name = f.Name
		m.favorites[i].Description = strings.TrimSpace(f.Description)
		m.favorites[i].SQL = f.SQL
		m.favorites[i].Tags = f.Tags
		m.favorites[i].ConnectionID = f.ConnectionID
		m.favorites[i].UpdatedAt = time.Now()
		if err := m.save(); err != nil {
			m.favorites[i] = prev
			return models.Favorite{}, err
		}
		return m.favorites[i], nil
	}
	return models.Favorite{}, &models.NotFoundError{Kind: "favorite", ID: id}
}

// Delete removes a favorite.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, f := range m.favorites {
		if f.ID == id {
			m.favorites = append(m.favorites[:i], m.favorites[i+1:]...)
			return m.save()
		}
	}
	return &models.NotFoundError{Kind: "favorite", ID: id}
}

// MarkUsed bumps the usage counter and timestamp.
func (m *Manager) MarkUsed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.favorites {
		if m.favorites[i].ID == id {
			now := time.Now()
			m.favorites[i].UsageCount++
			m.favorites[i].LastUsedAt = &now
			return m.save()
		}
	}
	return &models.NotFoundError{Kind: "favorite", ID: id}
}
