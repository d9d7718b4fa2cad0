package pristine

import "errors"

// Sentinel errors returned by the store. Table-level "not found" is not an
// error (spec §8.3: "a get on any table for a non-existent key returns
// 'not found' without error") — these are reserved for the failure modes
// spec §7 actually calls out as Storage or Concurrency errors.
var (
	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = errors.New("pristine: store is closed")

	// ErrWriteConflict is returned when a second write transaction is
	// attempted while one is already in flight (spec §7 "Concurrency").
	// Badger itself serializes writers, so in practice this surfaces the
	// underlying badger.ErrConflict / context-timeout case rather than
	// ever blocking forever.
	ErrWriteConflict = errors.New("pristine: write transaction conflict")

	// ErrReadOnly is not returned by this package: every write method takes
	// a *WriteTxn, so a read-only Txn cannot reach one.
	ErrReadOnly = errors.New("pristine: transaction is read-only")

	// ErrDuplicateKey is returned by PutUnique when the exact (key, value)
	// pair already exists in a multimap table (spec §4.1).
	ErrDuplicateKey = errors.New("pristine: key already present in multimap")
)
