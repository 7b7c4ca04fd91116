package store

import (
	"encoding/json"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketActors = []byte("actors")

// ActorRecord is the node-local snapshot of which actors this runtime
// currently hosts, used only for restart-time enumeration: cmd/calvinrt
// reads it at startup to populate the in-memory actor manager. Scheduler
// state itself is never persisted here, only the actor roster.
type ActorRecord struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Denied  bool      `json:"denied"`
	SavedAt time.Time `json:"saved_at"`
}

// LocalCatalog is an embedded BoltDB snapshot of the actor roster, one
// bucket per entity kind.
type LocalCatalog struct {
	db *bolt.DB
}

// OpenLocalCatalog opens (creating if absent) the catalog file under
// dataDir.
func OpenLocalCatalog(dataDir string) (*LocalCatalog, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "actors.db"), 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketActors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &LocalCatalog{db: db}, nil
}

func (c *LocalCatalog) Close() error {
	return c.db.Close()
}

// Put upserts a single actor's roster entry.
func (c *LocalCatalog) Put(rec ActorRecord) error {
	rec.SavedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActors).Put([]byte(rec.ID), data)
	})
}

// Delete removes an actor's roster entry, e.g. once migration completes.
func (c *LocalCatalog) Delete(id string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActors).Delete([]byte(id))
	})
}

// List returns every actor currently recorded in the roster.
func (c *LocalCatalog) List() ([]ActorRecord, error) {
	var out []ActorRecord
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActors).ForEach(func(_, v []byte) error {
			var rec ActorRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}
