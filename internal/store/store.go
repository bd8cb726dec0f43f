// Package store persists chat sessions as JSON documents in a local
// BadgerDB key-value store, with an optional Redis mirror kept as a
// best-effort backup. Reads prefer Badger and fall back to the mirror,
// healing the primary when the mirror still has the document.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

// ErrSessionNotFound is returned when a session ID is absent from both
// the primary store and the mirror.
var ErrSessionNotFound = errors.New("store: session not found")

const sessionKeyPrefix = "chat:sessions:"

// SessionStore is safe for concurrent use.
type SessionStore struct {
	db     *badger.DB
	mirror *redis.Client
	log    *logger.Logger
}

// Options configures a SessionStore.
type Options struct {
	// Dir is the directory for Badger data files. Required unless InMemory.
	Dir string

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool

	// Mirror is an optional Redis client; every write is mirrored to it
	// best-effort and reads fall back to it when the primary misses.
	Mirror *redis.Client

	Logger *logger.Logger
}

// Open opens the session store.
func Open(opts Options) (*SessionStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Options.Dir is required for on-disk mode")
	}
	if opts.Logger == nil {
		opts.Logger = logger.New(logger.DefaultConfig())
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &SessionStore{db: db, mirror: opts.Mirror, log: opts.Logger}, nil
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}

// Save writes the session document, replacing any previous version.
func (s *SessionStore) Save(ctx context.Context, session models.ChatSession) error {
	if session.ID == "" {
		return errors.New("store: session has no ID")
	}
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("store: marshal session %s: %w", session.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.ID), doc)
	})
	if err != nil {
		return fmt.Errorf("store: save session %s: %w", session.ID, err)
	}
	s.mirrorSet(ctx, session.ID, doc)
	return nil
}

// Get loads a session by ID. A miss on the primary falls through to the
// mirror; a mirror hit is written back to the primary.
func (s *SessionStore) Get(ctx context.Context, id string) (models.ChatSession, error) {
	var doc []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		doc, err = s.mirrorGet(ctx, id)
		if err != nil {
			return models.ChatSession{}, err
		}
		// Heal the primary so the next read does not depend on Redis.
		if healErr := s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(sessionKey(id), doc)
		}); healErr != nil {
			s.log.Warn("failed to heal session into primary store",
				"session_id", id, "error", healErr)
		}
	} else if err != nil {
		return models.ChatSession{}, fmt.Errorf("store: get session %s: %w", id, err)
	}

	var session models.ChatSession
	if err := json.Unmarshal(doc, &session); err != nil {
		return models.ChatSession{}, fmt.Errorf("store: decode session %s: %w", id, err)
	}
	return session, nil
}

// List returns every stored session, most recently updated first.
func (s *SessionStore) List(ctx context.Context) ([]models.ChatSession, error) {
	prefix := []byte(sessionKeyPrefix)
	var sessions []models.ChatSession
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var session models.ChatSession
			if err := json.Unmarshal(val, &session); err != nil {
				s.log.Warn("skipping undecodable session document",
					"key", string(it.Item().Key()), "error", err)
				continue
			}
			sessions = append(sessions, session)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUpdated.After(sessions[j].LastUpdated)
	})
	return sessions, nil
}

// Delete removes a session from both backends. Deleting an absent session
// is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("store: delete session %s: %w", id, err)
	}
	if s.mirror != nil {
		if err := s.mirror.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
			s.log.Warn("failed to delete session from mirror",
				"session_id", id, "error", err)
		}
	}
	return nil
}

// Close closes the underlying Badger database. The mirror client is owned
// by the caller and is left open.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) mirrorSet(ctx context.Context, id string, doc []byte) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Set(ctx, sessionKeyPrefix+id, doc, 0).Err(); err != nil {
		s.log.Warn("failed to mirror session write", "session_id", id, "error", err)
	}
}

func (s *SessionStore) mirrorGet(ctx context.Context, id string) ([]byte, error) {
	if s.mirror == nil {
		return nil, ErrSessionNotFound
	}
	doc, err := s.mirror.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		s.log.Warn("mirror read failed", "session_id", id, "error", err)
		return nil, ErrSessionNotFound
	}
	return doc, nil
}

// badgerLogger routes badger's own logging through the application logger,
// dropping info and debug noise.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error(fmt.Sprintf("badger: "+f, v...)) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn(fmt.Sprintf("badger: "+f, v...)) }
func (l badgerLogger) Infof(string, ...interface{})        {}
func (l badgerLogger) Debugf(string, ...interface{})       {}
