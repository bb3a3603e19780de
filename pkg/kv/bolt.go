package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("kv")

// Component terminator and the escape used for 0x00 bytes inside a component.
// The terminator sorts below the escape, so ("a") < ("a", "b") < ("a\x00").
var (
	terminator = []byte{0x00, 0x01}
	escapedNul = []byte{0x00, 0xFF}
)

// BoltStore implements Store on a single bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key Key) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(encodeKey(key))
		if v == nil {
			return ErrNotFound
		}
		out = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Set(ctx context.Context, key Key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(encodeKey(key), value)
	})
}

func (s *BoltStore) Delete(ctx context.Context, key Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(encodeKey(key))
	})
}

func (s *BoltStore) List(ctx context.Context, prefix Key) ([]Entry, error) {
	p := encodeKey(prefix)
	var entries []Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := decodeKey(k)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{Key: key, Value: bytes.Clone(v)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeKey(key Key) []byte {
	var buf bytes.Buffer
	for _, part := range key {
		for i := 0; i < len(part); i++ {
			if part[i] == 0x00 {
				buf.Write(escapedNul)
				continue
			}
			buf.WriteByte(part[i])
		}
		buf.Write(terminator)
	}
	return buf.Bytes()
}

func decodeKey(raw []byte) (Key, error) {
	var (
		key  Key
		part []byte
	)
	for i := 0; i < len(raw); i++ {
		if raw[i] != 0x00 {
			part = append(part, raw[i])
			continue
		}
		if i+1 >= len(raw) {
			return nil, errors.New("kv: truncated key")
		}
		switch raw[i+1] {
		case 0x01:
			key = append(key, string(part))
			part = part[:0]
		case 0xFF:
			part = append(part, 0x00)
		default:
			return nil, fmt.Errorf("kv: invalid key escape 0x%02x", raw[i+1])
		}
		i++
	}
	if len(part) > 0 {
		return nil, errors.New("kv: unterminated key component")
	}
	return key, nil
}
