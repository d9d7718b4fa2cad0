package pristine

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Txn is a read-only view over the pristine, pinned to the snapshot that
// was current when it was opened (spec §4.1, §5: "each read transaction is
// pinned to a specific root snapshot; the writer's in-progress changes are
// invisible to it").
//
// Txn is the minimal capability bundle of spec §9: read-access to channel
// tables and to tag metadata. WriteTxn embeds it and adds the write
// capability.
type Txn struct {
	badger *badger.Txn
}

// WriteTxn additionally allows mutation. There is at most one WriteTxn open
// against a Pristine at any time; View opens a read-only Txn and never
// blocks on it.
type WriteTxn struct {
	Txn
}

// View runs fn against a fresh read-only snapshot. The snapshot is released
// when fn returns; fn's return error (if any) is passed through.
func (p *Pristine) View(fn func(*Txn) error) error {
	if p.closed {
		return ErrClosed
	}
	return p.db.View(func(bt *badger.Txn) error {
		return fn(&Txn{badger: bt})
	})
}

// Update runs fn inside the single process-wide write transaction. If fn
// returns a non-nil error, or if committing the underlying badger
// transaction fails, every buffered mutation is discarded and the on-disk
// root is left unchanged (spec §4.1 "Failure model", §7 "Propagation":
// storage/graph errors are fatal for the enclosing transaction).
//
// Update blocks until any other in-flight write transaction on this
// Pristine has committed or rolled back (spec §5's single-writer
// discipline); badger enforces this by serializing callers of db.Update.
func (p *Pristine) Update(fn func(*WriteTxn) error) error {
	if p.closed {
		return ErrClosed
	}
	err := p.db.Update(func(bt *badger.Txn) error {
		return fn(&WriteTxn{Txn{badger: bt}})
	})
	if err != nil {
		return fmt.Errorf("pristine: write transaction: %w", err)
	}
	return nil
}
