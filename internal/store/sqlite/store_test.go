package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUser registers a user with a primary email and a local auth link.
func seedUser(t *testing.T, s *Store, id, username string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{Name: "User " + username, Username: username, Email: username + "@example.com"}
	u.ID = id
	u.CreatedAt, u.UpdatedAt = now, now

	reg := &store.Registration{
		User:  u,
		Email: &domain.UserEmail{ID: "uem-" + id, UserID: id, Email: u.Email, IsPrimary: true, CreatedAt: now},
		Auth:  &domain.UserAuth{ID: "uau-" + id, UserID: id, Provider: domain.AuthProviderLocal, ProviderID: id, CreatedAt: now},
	}
	if err := s.RegisterUser(context.Background(), reg); err != nil {
		t.Fatalf("RegisterUser(%s): %v", id, err)
	}
	return u
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{
		"users", "user_auths", "user_emails", "tags", "tag_associations",
		"likes", "projects", "project_owners", "tasks",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(path, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	seedUser(t, s, "usr-1", "ada")
	s.Close()

	s, err = Open(path, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	if _, err := s.GetUser(context.Background(), "usr-1"); err != nil {
		t.Fatalf("GetUser after reopen: %v", err)
	}
}

func TestPrefixColumns(t *testing.T) {
	got := prefixColumns("u", "id, name,\n\temail")
	if got != "u.id, u.name, u.email" {
		t.Errorf("prefixColumns: got %q", got)
	}
}

func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 5, 100_000_000, time.UTC)
	later := base.Add(20 * time.Millisecond)

	if a, b := formatTime(base), formatTime(later); a >= b {
		t.Errorf("expected %q < %q", a, b)
	}

	parsed, err := parseTime(formatTime(later))
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if !parsed.Equal(later) {
		t.Errorf("round trip: got %v, want %v", parsed, later)
	}
}
