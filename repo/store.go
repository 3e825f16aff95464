package repo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/sql"
	"github.com/spacemeshos/go-peerdid/sql/deltas"
)

// Store persists delta logs by storage key.
type Store interface {
	// Load returns the log stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) (*delta.Log, error)
	// Append adds d to the log under key, creating the log if needed. A change
	// already in the log is ignored.
	Append(ctx context.Context, key string, d *delta.Delta) (bool, error)
	// Keys lists the stored keys in order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

const logSuffix = ".jsonl"

// fileStore keeps one JSON-lines file per document.
type fileStore struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func newFileStore(fs afero.Fs, dir string) *fileStore {
	return &fileStore{fs: fs, dir: dir}
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, key+logSuffix)
}

func (s *fileStore) Load(_ context.Context, key string) (*delta.Log, error) {
	f, err := s.fs.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()
	l, err := delta.ParseLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if l.Empty() {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotFound, key)
	}
	return l, nil
}

func (s *fileStore) Append(ctx context.Context, key string, d *delta.Delta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		l = delta.NewLog()
	case err != nil:
		return false, err
	}
	if !l.Append(d) {
		return false, nil
	}
	return true, s.write(key, l)
}

// write replaces the log file through a temporary file and a rename so
// readers never see a partial log.
func (s *fileStore) write(key string, l *delta.Log) error {
	tmp, err := afero.TempFile(s.fs, s.dir, key+logSuffix+".tmp")
	if err != nil {
		return fmt.Errorf("%w: create tmp file", err)
	}
	defer tmp.Close()
	w := bufio.NewWriter(tmp)
	if err := l.MarshalLines(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush tmp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync tmp file", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close tmp file", err)
	}
	if err := s.fs.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("%w: rename tmp file %v to %v", err, tmp.Name(), s.path(key))
	}
	return nil
}

func (s *fileStore) Keys(context.Context) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), logSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), logSuffix))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fileStore) Close() error { return nil }

// sqlStore keeps all logs in one sqlite database.
type sqlStore struct {
	db *sql.Database
}

func (s *sqlStore) Load(_ context.Context, key string) (*delta.Log, error) {
	l, err := deltas.Load(s.db, key)
	if errors.Is(err, sql.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return l, err
}

func (s *sqlStore) Append(ctx context.Context, key string, d *delta.Delta) (bool, error) {
	appended := false
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		h := d.Hash()
		exists, err := deltas.Has(tx, key, h[:])
		if err != nil || exists {
			return err
		}
		if err := deltas.Add(tx, key, d); err != nil {
			return err
		}
		appended = true
		return nil
	})
	return appended, err
}

func (s *sqlStore) Keys(context.Context) ([]string, error) {
	return deltas.Docs(s.db)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
