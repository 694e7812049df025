package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stemsi/quizly-backend/internal/model"
)

// Session is the locally remembered login.
type Session struct {
	Token   string    `yaml:"token"`
	UserID  string    `yaml:"user_id"`
	Name    string    `yaml:"name"`
	Email   string    `yaml:"email"`
	Role    string    `yaml:"role,omitempty"`
	SavedAt time.Time `yaml:"saved_at"`
}

func newSession(resp model.AuthResponse) *Session {
	return &Session{
		Token:   resp.Token,
		UserID:  resp.User.ID.String(),
		Name:    resp.User.Name,
		Email:   resp.User.Email,
		Role:    string(resp.User.Role),
		SavedAt: time.Now().UTC(),
	}
}

// User rebuilds the public user stored with the session.
func (s *Session) User() model.PublicUser {
	id, _ := uuid.Parse(s.UserID)
	return model.PublicUser{ID: id, Name: s.Name, Email: s.Email, Role: model.Role(s.Role)}
}

// SessionStore persists a Session between runs. Load returns nil, nil
// when nothing is stored.
type SessionStore interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// DefaultSessionPath is quizly/session.yaml under the user config dir.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quizly", "session.yaml"), nil
}

// FileStore keeps the session in a YAML file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (*Session, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var s Session
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

func (f *FileStore) Save(s *Session) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStore keeps the session for the life of the process.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
