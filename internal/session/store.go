// Package session keeps refresh-token sessions in a Badger key-value store.
//
// Key layout:
//
//	session:<id>                    JSON encoded domain.Session
//	idx:session:token:<hash>        session id
//	idx:session:user:<userID>:<id>  empty marker
//
// Every key is written with a TTL matching the session expiry so Badger drops
// stale sessions on its own.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

const (
	sessionPrefix        = "session:"
	sessionByTokenPrefix = "idx:session:token:"
	sessionByUserPrefix  = "idx:session:user:"
)

// Store wraps a Badger database holding sessions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the Badger database at path. An empty path opens an in-memory store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Info("session store opened", "path", path, "in_memory", path == "")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func tokenKey(hash string) []byte { return []byte(sessionByTokenPrefix + hash) }

func userKey(userID, sessionID string) []byte {
	return []byte(sessionByUserPrefix + userID + ":" + sessionID)
}

// write stores the session and its index entries with a TTL matching its expiry.
func write(txn *badger.Txn, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return store.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	entries := []*badger.Entry{
		badger.NewEntry([]byte(sessionPrefix+session.ID), data).WithTTL(ttl),
		badger.NewEntry(tokenKey(session.RefreshTokenHash), []byte(session.ID)).WithTTL(ttl),
		badger.NewEntry(userKey(session.UserID, session.ID), nil).WithTTL(ttl),
	}
	for _, e := range entries {
		if err := txn.SetEntry(e); err != nil {
			return err
		}
	}
	return nil
}

func read(txn *badger.Txn, sessionID string) (*domain.Session, error) {
	item, err := txn.Get([]byte(sessionPrefix + sessionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &session)
	}); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}
	return &session, nil
}

func deleteKeys(txn *badger.Txn, session *domain.Session) error {
	for _, key := range [][]byte{
		[]byte(sessionPrefix + session.ID),
		tokenKey(session.RefreshTokenHash),
		userKey(session.UserID, session.ID),
	} {
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
	}
	return nil
}

// Create stores a new session. Returns store.ErrAlreadyExists if the ID is taken.
func (s *Store) Create(_ context.Context, session *domain.Session) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(sessionPrefix + session.ID))
		if err == nil {
			return store.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return write(txn, session)
	})
}

// Get returns a live session by ID.
func (s *Store) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	var session *domain.Session
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = read(txn, sessionID)
		return err
	})
	return session, err
}

// GetByRefreshToken returns the live session owning a refresh token hash.
func (s *Store) GetByRefreshToken(_ context.Context, tokenHash string) (*domain.Session, error) {
	var session *domain.Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey(tokenHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		sessionID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		session, err = read(txn, string(sessionID))
		return err
	})
	return session, err
}

// Rotate replaces the session's refresh token hash and expiry atomically.
// The old token stops resolving immediately.
func (s *Store) Rotate(_ context.Context, sessionID, newTokenHash string, expiresAt time.Time) (*domain.Session, error) {
	var session *domain.Session
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := read(txn, sessionID)
		if err != nil {
			return err
		}
		if err := txn.Delete(tokenKey(current.RefreshTokenHash)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		current.RefreshTokenHash = newTokenHash
		current.ExpiresAt = expiresAt
		current.Touch()
		if err := write(txn, current); err != nil {
			return err
		}
		session = current
		return nil
	})
	return session, err
}

// Delete removes a session and its index entries. Deleting a missing session is not an error.
func (s *Store) Delete(_ context.Context, sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var session domain.Session
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		}); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		return deleteKeys(txn, &session)
	})
}

// ListByUser returns the user's live sessions.
func (s *Store) ListByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	prefix := []byte(sessionByUserPrefix + userID + ":")
	sessions := []*domain.Session{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			sessionID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			session, err := read(txn, sessionID)
			if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
				continue
			}
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	return sessions, nil
}

// DeleteAllForUser removes every session of a user.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	sessions, err := s.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if err := s.Delete(ctx, session.ID); err != nil {
			return fmt.Errorf("delete session %s: %w", session.ID, err)
		}
	}
	if len(sessions) > 0 {
		s.logger.Info("sessions revoked", "user_id", userID, "count", len(sessions))
	}
	return nil
}
