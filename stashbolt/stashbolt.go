// Package stashbolt persists a parser's pre-stash in a Bolt database,
// so configuration-like stash entries survive process restarts.
//
// Values are stored as JSON in one bucket per parser name.  Load the
// store into a parser before reading; save after the reads that
// should stick.
package stashbolt

import (
	"encoding/json"
	"log"
	"time"

	"github.com/ruleline/ruleline/core"

	bolt "go.etcd.io/bbolt"
)

// Store is Bolt-backed pre-stash persistence.
type Store struct {
	Debug bool

	filename string
	db       *bolt.DB
}

// Open opens (creating if needed) the database at filename.
func Open(filename string) (*Store, error) {
	opts := &bolt.Options{
		Timeout: time.Second,
	}
	db, err := bolt.Open(filename, 0644, opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		filename: filename,
		db:       db,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) logf(format string, args ...interface{}) {
	if s != nil && s.Debug {
		log.Printf("stashbolt "+format, args...)
	}
}

// Load reads the named bucket into the parser's pre-stash.  A
// missing bucket is simply an empty pre-stash.
func (s *Store) Load(name string, p *core.Parser) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			s.logf("no bucket %q", name)
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var x interface{}
			if err := json.Unmarshal(v, &x); err != nil {
				return err
			}
			p.Prestash(string(k), x)
			return nil
		})
	})
}

// Save writes the parser's pre-stash into the named bucket,
// replacing whatever was there.
func (s *Store) Save(name string, p *core.Parser) error {
	pre := p.PrestashMap()
	s.logf("saving %d entries to %q", len(pre), name)

	return s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(name)); b != nil {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		for k, v := range pre {
			js, err := json.Marshal(&v)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(k), js); err != nil {
				return err
			}
		}
		return nil
	})
}

// Forget removes the named bucket.
func (s *Store) Forget(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
}
