// Package journal keeps a history of announced scan results in BadgerDB.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/model"
)

// Key layout:
//
//	scan:{ts_ns, 20 digits}:{session_id} → msgpack-encoded Entry
//
// Zero padding keeps lexicographic order chronological.
const scanPrefix = "scan:"

// Entry is one recorded result.
type Entry struct {
	SessionID    string    `msgpack:"session_id" json:"session_id"`
	Denomination string    `msgpack:"denomination" json:"denomination"`
	Currency     string    `msgpack:"currency" json:"currency"`
	Confidence   float64   `msgpack:"confidence" json:"confidence"`
	Timestamp    time.Time `msgpack:"timestamp" json:"timestamp"`
}

// Options configures the store.
type Options struct {
	// Dir holds the data files. Required unless InMemory is set.
	Dir string
	// InMemory keeps everything in memory.
	InMemory bool
	Logger   *zap.Logger
}

// Journal is a BadgerDB-backed result history.
type Journal struct {
	db *badger.DB
}

// Open opens or creates the journal.
func Open(opts Options) (*Journal, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("journal: Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger.Named("badger").Sugar()})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func entryKey(ts time.Time, sessionID string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", scanPrefix, ts.UnixNano(), sessionID))
}

// Record stores result under sessionID.
func (j *Journal) Record(_ context.Context, sessionID string, result *model.ClassificationResult) error {
	if result == nil {
		return errors.New("journal: nil result")
	}
	entry := Entry{
		SessionID:    sessionID,
		Denomination: result.Denomination,
		Currency:     string(result.Currency),
		Confidence:   result.Confidence,
		Timestamp:    result.Timestamp,
	}
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.Timestamp, sessionID), data)
	})
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// everything.
func (j *Journal) Recent(_ context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = true
		iterOpts.Prefix = []byte(scanPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key.
		seek := append([]byte(scanPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(scanPrefix)); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var e Entry
			if err := msgpack.Unmarshal(val, &e); err != nil {
				continue // skip malformed entries
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// badgerLogger routes badger's warnings and errors to zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.s.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.s.Warnf(f, v...) }
func (l badgerLogger) Infof(string, ...interface{})        {}
func (l badgerLogger) Debugf(string, ...interface{})       {}
