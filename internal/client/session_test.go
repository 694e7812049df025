package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/stemsi/quizly-backend/internal/model"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	store := NewFileStore(path)

	s, err := store.Load()
	if err != nil || s != nil {
		t.Fatalf("Load on missing file = (%v, %v), want (nil, nil)", s, err)
	}

	id := uuid.New()
	saved := newSession(model.AuthResponse{
		Token: "tok-abc",
		User:  model.PublicUser{ID: id, Name: "Ada", Email: "ada@example.com", Role: model.RoleTeacher},
	})
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Token != "tok-abc" {
		t.Errorf("token = %q", loaded.Token)
	}
	if u := loaded.User(); u.ID != id || u.Role != model.RoleTeacher || u.Email != "ada@example.com" {
		t.Errorf("user = %+v", u)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if s, _ := store.Load(); s != nil {
		t.Errorf("session after clear = %+v", s)
	}
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("token: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("expected a parse error")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	store := &MemoryStore{}
	s := &Session{Token: "one"}
	_ = store.Save(s)
	s.Token = "mutated"

	got, _ := store.Load()
	if got.Token != "one" {
		t.Errorf("token = %q, want the saved copy", got.Token)
	}
}
