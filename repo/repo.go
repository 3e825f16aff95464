// Package repo maps peer DIDs to their delta logs and resolves them.
package repo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/did"
	"github.com/spacemeshos/go-peerdid/document"
	"github.com/spacemeshos/go-peerdid/resolver"
	"github.com/spacemeshos/go-peerdid/sql"
)

var (
	// ErrNotFound is returned for DIDs that have no document.
	ErrNotFound = errors.New("repo: document not found")
	// ErrStorageUnavailable is returned when the container cannot be created.
	ErrStorageUnavailable = errors.New("repo: storage unavailable")
	// ErrPrecondition is returned for DIDs that callers should have rejected.
	ErrPrecondition = errors.New("repo: precondition violated")
	// ErrLocked is returned when another process holds the container.
	ErrLocked = errors.New("repo: container locked by another process")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("repo: closed")
)

// Backend selects the Store implementation.
type Backend string

const (
	BackendFiles  Backend = "files"
	BackendSQLite Backend = "sqlite"
)

const (
	dirPerm   = 0o700
	lockName  = ".lock"
	dbName    = "deltas.sql"
	cacheSize = 128
)

type cacheKey struct {
	did         string
	fingerprint string
	asOf        int64
}

// Opt configures a Repository.
type Opt func(*Repository)

// WithLogger specifies the logger.
func WithLogger(logger *zap.Logger) Opt {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithDatabaseLogger sets the logger of the sqlite backend. It defaults to a
// child of the repository logger.
func WithDatabaseLogger(logger *zap.Logger) Opt {
	return func(r *Repository) {
		r.dbLogger = logger
	}
}

// WithLatencyMetering records the duration of sqlite queries.
func WithLatencyMetering(enable bool) Opt {
	return func(r *Repository) {
		r.latency = enable
	}
}

// WithFs sets the filesystem holding the container.
func WithFs(fs afero.Fs) Opt {
	return func(r *Repository) {
		r.fs = fs
	}
}

// WithBackend selects how logs are stored.
func WithBackend(backend Backend) Opt {
	return func(r *Repository) {
		r.backend = backend
	}
}

// WithCacheSize sets the number of resolved documents kept in memory.
func WithCacheSize(n int) Opt {
	return func(r *Repository) {
		r.cacheSize = n
	}
}

// WithClock sets the clock used to timestamp created documents.
func WithClock(clock clockwork.Clock) Opt {
	return func(r *Repository) {
		r.clock = clock
	}
}

// Repository is the backing storage for a collection of peer DIDs. Its
// container directory is created on the first write, one level at most.
type Repository struct {
	path      string
	fs        afero.Fs
	backend   Backend
	cacheSize int
	logger    *zap.Logger
	dbLogger  *zap.Logger
	latency   bool
	clock     clockwork.Clock

	cache *lru.Cache[cacheKey, *document.Value]

	mu     sync.Mutex
	store  Store
	lock   *flock.Flock
	closed bool
}

// New creates a repository rooted at path. Nothing is touched on disk until
// the first document is created.
func New(path string, opts ...Opt) (*Repository, error) {
	r := &Repository{
		path:      filepath.Clean(path),
		fs:        afero.NewOsFs(),
		backend:   BackendFiles,
		cacheSize: cacheSize,
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dbLogger == nil {
		r.dbLogger = r.logger.Named("sql")
	}
	switch r.backend {
	case BackendFiles, BackendSQLite:
	default:
		return nil, fmt.Errorf("unknown backend %q", r.backend)
	}
	if r.cacheSize > 0 {
		cache, err := lru.New[cacheKey, *document.Value](r.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create resolve cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Path returns the container directory.
func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) onOsFs() bool {
	_, ok := r.fs.(*afero.OsFs)
	return ok
}

// open returns the store, creating the container first when create is set.
// A nil store without error means nothing was ever written.
func (r *Repository) open(create bool) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.store != nil {
		return r.store, nil
	}
	exists, err := afero.DirExists(r.fs, r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrStorageUnavailable, r.path, err)
	}
	if !exists {
		if !create {
			return nil, nil
		}
		parent := filepath.Dir(r.path)
		if ok, err := afero.DirExists(r.fs, parent); err != nil || !ok {
			return nil, fmt.Errorf("%w: parent %s of %s does not exist", ErrStorageUnavailable, parent, r.path)
		}
		if err := r.fs.Mkdir(r.path, dirPerm); err != nil {
			return nil, fmt.Errorf("%w: mkdir %s: %w", ErrStorageUnavailable, r.path, err)
		}
		r.logger.Debug("created repository container", zap.String("path", r.path))
	}
	if r.onOsFs() {
		fl := flock.New(filepath.Join(r.path, lockName))
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("flock %s: %w", fl.Path(), err)
		} else if !locked {
			return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
		}
		r.lock = fl
	}
	store, err := r.newStore()
	if err != nil {
		r.unlock()
		return nil, err
	}
	r.store = store
	return store, nil
}

func (r *Repository) newStore() (Store, error) {
	if r.backend == BackendFiles {
		return newFileStore(r.fs, r.path), nil
	}
	opts := []sql.Opt{sql.WithLogger(r.dbLogger), sql.WithLatencyMetering(r.latency)}
	var (
		db  *sql.Database
		err error
	)
	if r.onOsFs() {
		db, err = sql.Open("file:"+filepath.Join(r.path, dbName), opts...)
	} else {
		// sqlite needs a real file, keep the database in memory instead.
		db, err = sql.OpenInMemory(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return &sqlStore{db: db}, nil
}

func (r *Repository) unlock() {
	if r.lock == nil {
		return
	}
	if err := r.lock.Unlock(); err != nil {
		r.logger.Error("failed to unlock repository",
			zap.String("path", r.lock.Path()),
			zap.Error(err),
		)
	}
	r.lock = nil
}

// Close releases the store and the container lock.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var err error
	if r.store != nil {
		err = r.store.Close()
	}
	r.unlock()
	return err
}

// CreateDocument creates a document whose genesis is payload endorsed by by.
// Creating the same genesis twice yields the same DID.
func (r *Repository) CreateDocument(ctx context.Context, payload delta.Payload, by ...string) (did.DID, error) {
	d, err := delta.New(payload, by, delta.WithClock(r.clock))
	if err != nil {
		return did.DID{}, err
	}
	return r.CreateFromDelta(ctx, d)
}

// CreateFromDelta creates a document with d as genesis.
func (r *Repository) CreateFromDelta(ctx context.Context, d *delta.Delta) (did.DID, error) {
	store, err := r.open(true)
	if err != nil {
		return did.DID{}, err
	}
	key, err := did.StorageKey(d.ID())
	if err != nil {
		return did.DID{}, err
	}
	appended, err := store.Append(ctx, key, d)
	if err != nil {
		return did.DID{}, fmt.Errorf("create %s: %w", d.DID(), err)
	}
	if appended {
		appendedDeltas.WithLabelValues(string(r.backend)).Inc()
		r.logger.Debug("created document", zap.Stringer("did", d.DID()), zap.Strings("by", d.By()))
	}
	return d.DID(), nil
}

// Append adds d to the log of an existing document. A change the log already
// holds is ignored.
func (r *Repository) Append(ctx context.Context, s string, d *delta.Delta) error {
	id, err := did.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	if id.Reserved() {
		return fmt.Errorf("%w: %s is reserved", ErrPrecondition, id)
	}
	if _, err := r.load(ctx, id); err != nil {
		return err
	}
	store, err := r.open(true)
	if err != nil {
		return err
	}
	key, err := did.StorageKey(id.String())
	if err != nil {
		return err
	}
	appended, err := store.Append(ctx, key, d)
	if err != nil {
		return fmt.Errorf("append to %s: %w", id, err)
	}
	if appended {
		appendedDeltas.WithLabelValues(string(r.backend)).Inc()
		r.logger.Debug("appended delta", zap.Stringer("did", id), zap.String("delta", d.ID()))
	}
	return nil
}

func (r *Repository) load(ctx context.Context, id did.DID) (*delta.Log, error) {
	store, err := r.open(false)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	key, err := did.StorageKey(id.String())
	if err != nil {
		return nil, err
	}
	l, err := store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return l, nil
}

// Lookup finds the document named by s. Malformed DIDs are reported as not
// found, reserved DIDs are answered from canned templates.
func (r *Repository) Lookup(ctx context.Context, s string) (*Handle, error) {
	id, err := did.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if ch, ok := id.ReservedChar(); ok {
		canned, ok := document.Predefined(ch)
		if !ok {
			return nil, fmt.Errorf("%w: no canned document for %s", ErrNotFound, id)
		}
		kind := KindPredefined
		if string(canned) == document.InvalidMarker {
			kind = KindInvalid
		}
		return &Handle{did: id, kind: kind, canned: canned}, nil
	}
	l, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Handle{did: id, kind: KindStored, log: l}, nil
}

type resolveOptions struct {
	asOf time.Time
}

// ResolveOpt configures Resolve.
type ResolveOpt func(*resolveOptions)

// AsOf resolves the document as it was at t.
func AsOf(t time.Time) ResolveOpt {
	return func(o *resolveOptions) {
		o.asOf = t
	}
}

// Resolve looks up and resolves the document named by s. The deliberately
// invalid canned document yields a *document.ValidationError.
func (r *Repository) Resolve(ctx context.Context, s string, opts ...ResolveOpt) (*document.Value, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	h, err := r.Lookup(ctx, s)
	if err != nil {
		return nil, err
	}
	switch h.kind {
	case KindInvalid:
		return nil, document.ValidateJSON(h.canned)
	case KindPredefined:
		defer func() { resolveLatency.WithLabelValues("predefined").Observe(time.Since(start).Seconds()) }()
		return document.ParseObject(h.canned)
	}

	key := cacheKey{did: h.did.String(), fingerprint: h.log.Fingerprint()}
	if !o.asOf.IsZero() {
		key.asOf = o.asOf.UnixNano()
	}
	if r.cache != nil {
		if doc, ok := r.cache.Get(key); ok {
			resolveLatency.WithLabelValues("cache").Observe(time.Since(start).Seconds())
			return doc.Clone(), nil
		}
	}
	var ropts []resolver.Opt
	if !o.asOf.IsZero() {
		ropts = append(ropts, resolver.AsOf(o.asOf))
	}
	doc, err := resolver.Resolve(h.log, ropts...)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", h.did, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s has no genesis", ErrNotFound, h.did)
	}
	if r.cache != nil {
		r.cache.Add(key, doc.Clone())
	}
	resolveLatency.WithLabelValues("replay").Observe(time.Since(start).Seconds())
	return doc, nil
}

// State is the history fingerprint of one document.
type State struct {
	DID    string
	Digest string
}

// GetState fingerprints the full delta history of every DID. Callers must
// pass valid, non-reserved DIDs.
func (r *Repository) GetState(ctx context.Context, dids ...string) ([]State, error) {
	states := make([]State, 0, len(dids))
	for _, s := range dids {
		id, err := did.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
		}
		if id.Reserved() {
			return nil, fmt.Errorf("%w: %s is reserved", ErrPrecondition, id)
		}
		l, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}
		states = append(states, State{DID: id.String(), Digest: l.Fingerprint()})
	}
	return states, nil
}

// List returns the DIDs of all stored documents in storage key order.
func (r *Repository) List(ctx context.Context) ([]did.DID, error) {
	store, err := r.open(false)
	if err != nil || store == nil {
		return nil, err
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	dids := make([]did.DID, 0, len(keys))
	for _, key := range keys {
		raw, err := hex.DecodeString(key)
		if err != nil {
			r.logger.Warn("skipping foreign file in repository", zap.String("key", key))
			continue
		}
		id, err := did.FromID(base58.Encode(raw))
		if err != nil {
			r.logger.Warn("skipping foreign file in repository", zap.String("key", key), zap.Error(err))
			continue
		}
		dids = append(dids, id)
	}
	return dids, nil
}
