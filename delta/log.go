package delta

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spacemeshos/go-peerdid/did"
	"github.com/spacemeshos/go-peerdid/hash"
)

// Log is the append-only sequence of deltas of one document. The first delta
// is the genesis and fixes the document identity.
type Log struct {
	mu     sync.RWMutex
	deltas []*Delta
	hashes map[[hash.Size]byte]struct{}
}

// NewLog creates a log holding deltas, skipping duplicates.
func NewLog(deltas ...*Delta) *Log {
	l := &Log{}
	for _, d := range deltas {
		l.Append(d)
	}
	return l
}

// Append adds d to the end of the log. A delta whose hash is already in the
// log is discarded and false is returned.
func (l *Log) Append(d *Delta) bool {
	h := d.Hash()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hashes == nil {
		l.hashes = make(map[[hash.Size]byte]struct{})
	}
	if _, ok := l.hashes[h]; ok {
		return false
	}
	l.hashes[h] = struct{}{}
	l.deltas = append(l.deltas, d)
	return true
}

// Contains reports whether a delta with the same change is in the log.
func (l *Log) Contains(d *Delta) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.hashes[d.Hash()]
	return ok
}

// Len returns the number of deltas.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.deltas)
}

// Empty reports whether the log has no genesis.
func (l *Log) Empty() bool {
	return l.Len() == 0
}

// Genesis returns the first delta, or nil.
func (l *Log) Genesis() *Delta {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.deltas) == 0 {
		return nil
	}
	return l.deltas[0]
}

// Deltas returns the deltas in order.
func (l *Log) Deltas() []*Delta {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Delta(nil), l.deltas...)
}

// ID returns the genesis identifier, or "" for an empty log.
func (l *Log) ID() string {
	if g := l.Genesis(); g != nil {
		return g.ID()
	}
	return ""
}

// DID returns the document DID. ok is false for an empty log.
func (l *Log) DID() (d did.DID, ok bool) {
	g := l.Genesis()
	if g == nil {
		return did.DID{}, false
	}
	return g.DID(), true
}

// Fingerprint digests the content of the history: sha256 over the hashes of
// all deltas in log order, base64url encoded. Endorsers and timestamps do not
// contribute, so replicas holding the same changes agree.
func (l *Log) Fingerprint() string {
	h := hash.GetHasher()
	defer hash.PutHasher(h)
	for _, d := range l.Deltas() {
		sum := d.Hash()
		h.Write(sum[:])
	}
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// MarshalLines writes one wire-form delta per line.
func (l *Log) MarshalLines(w io.Writer) error {
	for _, d := range l.Deltas() {
		line, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode delta %s: %w", d.ID(), err)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write delta %s: %w", d.ID(), err)
		}
	}
	return nil
}

// ParseLines reads a log written by MarshalLines. Blank lines are skipped.
func ParseLines(r io.Reader) (*Log, error) {
	l := &Log{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		d, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		l.Append(d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return l, nil
}
