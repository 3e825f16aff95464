// Package deltas stores delta logs in the sqlite database, one row per delta
// keyed by the document storage key and its position in the log.
package deltas

import (
	"encoding/json"
	"fmt"

	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/sql"
)

// Add appends d to the log of doc. Adding a change that the log already
// holds fails with sql.ErrObjectExists.
func Add(db sql.Executor, doc string, d *delta.Delta) error {
	by, err := json.Marshal(d.By())
	if err != nil {
		return fmt.Errorf("encode endorsers: %w", err)
	}
	h := d.Hash()
	if _, err := db.Exec(`
		insert into deltas (doc, seq, hash, change, endorsers, made_at)
		select ?1, coalesce(max(seq), -1) + 1, ?2, ?3, ?4, ?5 from deltas where doc = ?1`,
		func(stmt *sql.Statement) {
			stmt.BindText(1, doc)
			stmt.BindBytes(2, h[:])
			stmt.BindText(3, d.Change())
			stmt.BindText(4, string(by))
			stmt.BindText(5, delta.FormatTime(d.When()))
		}, nil); err != nil {
		return fmt.Errorf("insert delta %s into %s: %w", d.ID(), doc, err)
	}
	return nil
}

// Load reads the log of doc in order. A document without rows is
// sql.ErrNotFound.
func Load(db sql.Executor, doc string) (*delta.Log, error) {
	l := delta.NewLog()
	var decodeErr error
	rows, err := db.Exec("select change, endorsers, made_at from deltas where doc = ?1 order by seq",
		func(stmt *sql.Statement) {
			stmt.BindText(1, doc)
		}, func(stmt *sql.Statement) bool {
			var by []string
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &by); err != nil {
				decodeErr = fmt.Errorf("decode endorsers: %w", err)
				return false
			}
			when, err := delta.ParseTime(stmt.ColumnText(2))
			if err != nil {
				decodeErr = err
				return false
			}
			d, err := delta.New(delta.Base64Text(stmt.ColumnText(0)), by, delta.WithWhen(when))
			if err != nil {
				decodeErr = err
				return false
			}
			l.Append(d)
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("load deltas of %s: %w", doc, err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("load deltas of %s: %w", doc, decodeErr)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: document %s", sql.ErrNotFound, doc)
	}
	return l, nil
}

// Has reports whether the log of doc holds a change with the given hash.
func Has(db sql.Executor, doc string, hash []byte) (bool, error) {
	rows, err := db.Exec("select 1 from deltas where doc = ?1 and hash = ?2",
		func(stmt *sql.Statement) {
			stmt.BindText(1, doc)
			stmt.BindBytes(2, hash)
		}, nil)
	if err != nil {
		return false, fmt.Errorf("has delta: %w", err)
	}
	return rows > 0, nil
}

// Count returns the number of deltas logged for doc.
func Count(db sql.Executor, doc string) (int, error) {
	var n int
	if _, err := db.Exec("select count(*) from deltas where doc = ?1",
		func(stmt *sql.Statement) {
			stmt.BindText(1, doc)
		}, func(stmt *sql.Statement) bool {
			n = stmt.ColumnInt(0)
			return true
		}); err != nil {
		return 0, fmt.Errorf("count deltas: %w", err)
	}
	return n, nil
}

// Docs lists the storage keys of all stored documents.
func Docs(db sql.Executor) ([]string, error) {
	var docs []string
	if _, err := db.Exec("select distinct doc from deltas order by doc", nil,
		func(stmt *sql.Statement) bool {
			docs = append(docs, stmt.ColumnText(0))
			return true
		}); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}
