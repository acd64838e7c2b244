package alert

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "alert/"

// Store persists alerts in an embedded Badger database so open alerts
// survive restarts without depending on the Postgres instance the alerts
// are often about.
type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) the alert database at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(&badgerLogger{logger: logger}).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}

	return &Store{db: db}, nil
}

// NewInMemoryStore backs the store with memory only. For tests.
func NewInMemoryStore(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory alert store: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the alert immediately. Alerts are persisted on every state
// change, not batched.
func (s *Store) Save(a *Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert %s: %w", a.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+a.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save alert %s: %w", a.ID, err)
	}

	return nil
}

// Get loads one alert by id. Returns badger.ErrKeyNotFound when absent.
func (s *Store) Get(id string) (*Alert, error) {
	var a Alert

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}

	return &a, nil
}

// LoadOpen returns every alert still in an open state, for restart recovery.
func (s *Store) LoadOpen() ([]*Alert, error) {
	var open []*Alert

	err := s.iterate(func(a *Alert) {
		if a.Open() {
			open = append(open, a)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load open alerts: %w", err)
	}

	return open, nil
}

// History returns alerts created after since in any state, newest first,
// capped at limit. A zero since returns everything.
func (s *Store) History(since time.Time, limit int) ([]*Alert, error) {
	var all []*Alert

	err := s.iterate(func(a *Alert) {
		if since.IsZero() || a.CreatedAt.After(since) {
			all = append(all, a)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load alert history: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// PurgeResolvedBefore deletes resolved alerts older than cutoff and reports
// how many were removed.
func (s *Store) PurgeResolvedBefore(cutoff time.Time) (int, error) {
	var stale [][]byte

	err := s.iterateItems(func(key []byte, a *Alert) {
		if a.State == StateResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			k := make([]byte, len(key))
			copy(k, key)
			stale = append(stale, k)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("scan resolved alerts: %w", err)
	}

	for _, key := range stale {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return 0, fmt.Errorf("purge alert %s: %w", key, err)
		}
	}

	return len(stale), nil
}

func (s *Store) iterate(fn func(*Alert)) error {
	return s.iterateItems(func(_ []byte, a *Alert) { fn(a) })
}

func (s *Store) iterateItems(fn func(key []byte, a *Alert)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var a Alert
				if err := json.Unmarshal(val, &a); err != nil {
					return fmt.Errorf("decode alert %s: %w", item.Key(), err)
				}
				fn(item.Key(), &a)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger adapts slog to Badger's logger interface. Badger's info and
// debug chatter is demoted so it never drowns out alert traffic.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
