package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "sessions"

// BoltStore implements Store using BoltDB. It is scratch space for live
// sessions, not an archive: sessions older than the TTL are purged on open.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the database at path and drops every session
// last updated before now minus ttl. A zero ttl keeps everything.
func NewBoltStore(path string, ttl time.Duration, now time.Time) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	store := &BoltStore{db: db}
	if ttl > 0 {
		purged, err := store.DeleteOlderThan(now.Add(-ttl))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("purging expired sessions: %w", err)
		}
		if len(purged) > 0 {
			slog.Info("Purged expired sessions", "count", len(purged), "path", path)
		}
	}
	return store, nil
}

// Get retrieves a session by ID
func (b *BoltStore) Get(id string) (State, error) {
	var s State
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshaling session %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}
	return s, nil
}

// Save creates or replaces a session
func (b *BoltStore) Save(s State) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(s.ID), data)
	})
}

// Delete removes a session
func (b *BoltStore) Delete(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// DeleteOlderThan removes sessions last updated before cutoff
func (b *BoltStore) DeleteOlderThan(cutoff time.Time) ([]string, error) {
	var expired []string
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		err := bucket.ForEach(func(k, v []byte) error {
			var head struct {
				UpdatedAt time.Time `json:"updated_at"`
			}
			if err := json.Unmarshal(v, &head); err != nil {
				slog.Warn("Dropping unreadable session", "id", string(k), "error", err)
				expired = append(expired, string(k))
				return nil
			}
			if head.UpdatedAt.Before(cutoff) {
				expired = append(expired, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		// bolt forbids deleting while iterating
		for _, id := range expired {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
