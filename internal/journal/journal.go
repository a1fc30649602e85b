// Package journal provides persistent storage for member lifecycle events.
// It uses BoltDB as the underlying engine so a finished run can be analyzed
// offline: which members drifted, when, and whether old concepts came back.
//
// Events are keyed by instance count and a per-instance sequence, giving
// efficient range queries over any stretch of the stream.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"driftstream/internal/member"
)

const eventsBucket = "events"

// Journal persists lifecycle events for one engine run.
type Journal struct {
	db  *bbolt.DB
	seq atomic.Uint64
}

// Open creates or opens the journal database under dataPath.
func Open(dataPath string) (*Journal, error) {
	dbPath := filepath.Join(dataPath, "driftstream-events.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(eventsBucket)); err != nil {
			return fmt.Errorf("create events bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends one event. Safe for concurrent use.
func (j *Journal) Record(ev member.Event) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(eventsBucket))

		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		// Key: big-endian instance count + sequence, so cursor order is
		// stream order even when several members fire on one example.
		key := make([]byte, 16)
		binary.BigEndian.PutUint64(key[:8], uint64(ev.Instances))
		binary.BigEndian.PutUint64(key[8:], j.seq.Add(1))
		return b.Put(key, data)
	})
}

// EventsBetween returns events with instance counts in [from, to], in stream
// order.
func (j *Journal) EventsBetween(from, to int64) ([]member.Event, error) {
	var events []member.Event

	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(eventsBucket))
		c := b.Cursor()

		start := make([]byte, 16)
		binary.BigEndian.PutUint64(start[:8], uint64(from))

		for k, v := c.Seek(start); k != nil; k, v = c.Next() {
			instances := int64(binary.BigEndian.Uint64(k[:8]))
			if instances > to {
				break
			}

			var ev member.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				continue // skip malformed records
			}
			events = append(events, ev)
		}
		return nil
	})

	return events, err
}
