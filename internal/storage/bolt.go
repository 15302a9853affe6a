package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBoltBucket holds alert items keyed by alert id.
const DefaultBoltBucket = "alerts"

// Bolt stores alerts as JSON documents in a single bbolt bucket. Scan walks
// the bucket in key order.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens or creates the database file at path.
func OpenBolt(path, bucket string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt.path is required")
	}
	if bucket == "" {
		bucket = DefaultBoltBucket
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	b := &Bolt{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bolt bucket: %w", err)
	}
	return b, nil
}

// Close closes the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Put(_ context.Context, item Item) error {
	value, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(item.AlertID), value)
	})
}

func (b *Bolt) Get(_ context.Context, alertID string) (item Item, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(b.bucket).Get([]byte(alertID))
		if val == nil {
			return ErrNotFound
		}
		item, err = decodeItem(val)
		return err
	})
	return
}

func (b *Bolt) Scan(_ context.Context, limit int) ([]Item, error) {
	var items []Item
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(items) >= limit {
				break
			}
			item, err := decodeItem(v)
			if err != nil {
				return fmt.Errorf("decode alert %s: %w", k, err)
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (b *Bolt) Count(context.Context) (int64, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(b.bucket).Stats().KeyN
		return nil
	})
	return int64(n), err
}

// DeleteExpired removes items whose expiry precedes before.
func (b *Bolt) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var removed int64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var meta struct {
				Expiry time.Time `json:"expiry"`
			}
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decode alert %s: %w", k, err)
			}
			if meta.Expiry.Before(before) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func decodeItem(v []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var item Item
	if err := dec.Decode(&item); err != nil {
		return Item{}, err
	}
	return item, nil
}

var (
	_ Backend        = (*Bolt)(nil)
	_ ExpiredDeleter = (*Bolt)(nil)
)
