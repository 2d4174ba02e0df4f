// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package persist stores ended sessions durably so they survive a process
// restart and stay queryable over the API.
package persist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/metrics"
	"github.com/fufel/trailmap/internal/models"
)

const sessionKeyPrefix = "session:"

// Store is a BadgerDB-backed session record store. Values are JSON-encoded
// session objects keyed by sanitized, lowercased session id.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store at path. With syncWrites each
// save is fsynced before returning.
func Open(path string, syncWrites bool) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs
	opts.SyncWrites = syncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an already opened BadgerDB. Used by tests.
func NewStoreFromDB(db *badger.DB) *Store {
	return &Store{db: db}
}

func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + strings.ToLower(models.SanitizeID(id)))
}

// Save writes the session record, overwriting any prior record under the
// same id.
func (s *Store) Save(session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		metrics.PersistErrors.Inc()
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.ID), data)
	})
	if err != nil {
		metrics.PersistErrors.Inc()
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	metrics.PersistWrites.Inc()
	return nil
}

// Load retrieves a session record by id. A missing key and an unreadable
// record both report ok=false; the latter is logged, never fatal.
func (s *Store) Load(id string) (*models.Session, bool) {
	var session models.Session

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			logging.Warn().Err(err).Str("session_id", id).Msg("Unreadable session record")
		}
		return nil, false
	}
	return &session, true
}

// List returns every stored session, newest started first. Unreadable
// records are skipped.
func (s *Store) List() ([]*models.Session, error) {
	var out []*models.Session

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var session models.Session
				if err := json.Unmarshal(val, &session); err != nil {
					logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable session record")
					return nil
				}
				out = append(out, &session)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt > out[j].StartedAt
	})
	return out, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
