package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Key prefixes. Keys are "<prefix><20-digit sequence>"; the sequence is
// shared by both prefixes and strictly increasing, so lexical order is
// insertion order.
const (
	eventKeyPrefix  = "event/"
	resultKeyPrefix = "result/"
	sequenceKey     = "meta/seq"

	// sequenceBandwidth is how many numbers are leased per disk write.
	sequenceBandwidth = 128
)

// BadgerEventLog stores events and results in an embedded BadgerDB.
type BadgerEventLog struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadgerEventLog opens (or creates) a database in dir. An empty dir opens
// an in-memory database.
func OpenBadgerEventLog(dir string) (*BadgerEventLog, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	log, err := NewBadgerEventLog(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}

func NewBadgerEventLog(db *badger.DB) (*BadgerEventLog, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("lease key sequence: %w", err)
	}
	return &BadgerEventLog{db: db, seq: seq}, nil
}

func (b *BadgerEventLog) key(prefix string) ([]byte, error) {
	n, err := b.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("next key: %w", err)
	}
	return []byte(fmt.Sprintf("%s%020d", prefix, n)), nil
}

func (b *BadgerEventLog) put(prefix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	key, err := b.key(prefix)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (b *BadgerEventLog) SaveEvent(_ context.Context, event models.LoginEvent) error {
	if err := b.put(eventKeyPrefix, event); err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

func (b *BadgerEventLog) SaveResult(_ context.Context, result models.RiskAssessment) error {
	if err := b.put(resultKeyPrefix, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (b *BadgerEventLog) ListEvents(_ context.Context, limit int) ([]models.LoginEvent, error) {
	return listPrefix[models.LoginEvent](b.db, eventKeyPrefix, limit)
}

func (b *BadgerEventLog) ListResults(_ context.Context, limit int) ([]models.RiskAssessment, error) {
	return listPrefix[models.RiskAssessment](b.db, resultKeyPrefix, limit)
}

// Close returns unused leased sequence numbers and closes the database.
func (b *BadgerEventLog) Close() error {
	if err := b.seq.Release(); err != nil {
		_ = b.db.Close()
		return fmt.Errorf("release key sequence: %w", err)
	}
	return b.db.Close()
}

// listPrefix walks the prefix newest-first until limit entries are collected,
// then flips the slice to chronological order.
func listPrefix[T any](db *badger.DB, prefix string, limit int) ([]T, error) {
	items := make([]T, 0)

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(prefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
			var item T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				return err
			}
			items = append(items, item)
			if limit > 0 && len(items) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}
