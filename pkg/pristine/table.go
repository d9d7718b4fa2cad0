package pristine

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Codec pairs an encoder and decoder for a table's key or value type. Every
// table in pkg/graph, pkg/tag and pkg/remote is built from one of these rather than a bespoke byte-fiddling function,
// the way pkg/storage/badger_serialization.go centralizes (de)serialization
// for the teacher's property graph.
type Codec[T any] struct {
	Encode func(T) []byte
	Decode func([]byte) (T, error)
}

// Table is a unique-key table: one value per key. This backs spec §3.3/§3.4
// tables such as `changes`, `states`, `internal`, `external`, `node_type`,
// `tag_metadata`, `last_modified`.
type Table[K, V any] struct {
	// Prefix namespaces this table's keys within the single shared badger
	// keyspace (every table in a Pristine lives in one badger.DB).
	Prefix byte
	Key    Codec[K]
	Value  Codec[V]
}

func (t Table[K, V]) fullKey(k K) []byte {
	return append([]byte{t.Prefix}, t.Key.Encode(k)...)
}

// Get returns the value stored at k, or ok=false if the key is absent —
// "not found" is not an error (spec §8.3).
func (t Table[K, V]) Get(txn *Txn, k K) (value V, ok bool, err error) {
	item, err := txn.badger.Get(t.fullKey(k))
	if err == badger.ErrKeyNotFound {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("pristine: table get: %w", err)
	}
	err = item.Value(func(raw []byte) error {
		v, derr := t.Value.Decode(raw)
		if derr != nil {
			return derr
		}
		value = v
		return nil
	})
	if err != nil {
		return value, false, fmt.Errorf("pristine: decoding value: %w", err)
	}
	return value, true, nil
}

// Put unconditionally sets k -> v.
func (t Table[K, V]) Put(txn *WriteTxn, k K, v V) error {
	if err := txn.badger.Set(t.fullKey(k), t.Value.Encode(v)); err != nil {
		return fmt.Errorf("pristine: table put: %w", err)
	}
	return nil
}

// Del removes k, if present. Deleting an absent key is not an error.
func (t Table[K, V]) Del(txn *WriteTxn, k K) error {
	if err := txn.badger.Delete(t.fullKey(k)); err != nil {
		return fmt.Errorf("pristine: table del: %w", err)
	}
	return nil
}

// Has reports whether k is present, without paying for a value decode.
func (t Table[K, V]) Has(txn *Txn, k K) (bool, error) {
	_, err := txn.badger.Get(t.fullKey(k))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pristine: table has: %w", err)
	}
	return true, nil
}

// MultiTable is a sorted multimap: many values per key, ordered. This backs
// the `graph`, `dep`/`revdep` and `touched_files`/`rev_touched` tables of
// spec §3.3/§3.4, and pkg/graph's per-channel vertex index.
type MultiTable[K, V any] struct {
	Prefix byte
	Key    Codec[K]
	Value  Codec[V]
}

func (t MultiTable[K, V]) keyPrefix(k K) []byte {
	return append([]byte{t.Prefix}, t.Key.Encode(k)...)
}

func (t MultiTable[K, V]) pairKey(k K, v V) []byte {
	return append(t.keyPrefix(k), t.Value.Encode(v)...)
}

// Put inserts the pair (k, v), tolerant of it already being present.
func (t MultiTable[K, V]) Put(txn *WriteTxn, k K, v V) error {
	if err := txn.badger.Set(t.pairKey(k, v), []byte{}); err != nil {
		return fmt.Errorf("pristine: multimap put: %w", err)
	}
	return nil
}

// PutUnique inserts (k, v), failing with ErrDuplicateKey if that exact pair
// is already present (spec §4.1: "put_unique(k,v) fails on duplicate exact
// pair").
func (t MultiTable[K, V]) PutUnique(txn *WriteTxn, k K, v V) error {
	key := t.pairKey(k, v)
	_, err := txn.badger.Get(key)
	if err == nil {
		return ErrDuplicateKey
	}
	if err != badger.ErrKeyNotFound {
		return fmt.Errorf("pristine: multimap put_unique: %w", err)
	}
	if err := txn.badger.Set(key, []byte{}); err != nil {
		return fmt.Errorf("pristine: multimap put_unique: %w", err)
	}
	return nil
}

// Del removes the specific pair (k, v) from the multimap (spec §4.1:
// "del(k, Some(v)) removes a specific (k,v) pair").
func (t MultiTable[K, V]) Del(txn *WriteTxn, k K, v V) error {
	if err := txn.badger.Delete(t.pairKey(k, v)); err != nil {
		return fmt.Errorf("pristine: multimap del: %w", err)
	}
	return nil
}

// DelAll removes every value stored under k.
func (t MultiTable[K, V]) DelAll(txn *WriteTxn, k K) error {
	var toDelete [][]byte
	err := t.scan(&txn.Txn, k, false, func(raw []byte, _ V) (bool, error) {
		toDelete = append(toDelete, append([]byte{}, raw...))
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, key := range toDelete {
		if err := txn.badger.Delete(key); err != nil {
			return fmt.Errorf("pristine: multimap del_all: %w", err)
		}
	}
	return nil
}

// Has reports whether the exact pair (k, v) is present.
func (t MultiTable[K, V]) Has(txn *Txn, k K, v V) (bool, error) {
	_, err := txn.badger.Get(t.pairKey(k, v))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pristine: multimap has: %w", err)
	}
	return true, nil
}

// Iter calls fn for every value stored under k, in ascending order, until
// fn returns keepGoing=false or an error.
func (t MultiTable[K, V]) Iter(txn *Txn, k K, fn func(v V) (keepGoing bool, err error)) error {
	return t.scan(txn, k, false, func(_ []byte, v V) (bool, error) { return fn(v) })
}

// RevIter calls fn for every value stored under k, in descending order.
func (t MultiTable[K, V]) RevIter(txn *Txn, k K, fn func(v V) (keepGoing bool, err error)) error {
	return t.scan(txn, k, true, func(_ []byte, v V) (bool, error) { return fn(v) })
}

// All collects every value under k, ascending. A convenience wrapper around
// Iter for callers (most of pkg/graph) that want the whole adjacency set at
// once rather than streaming it.
func (t MultiTable[K, V]) All(txn *Txn, k K) ([]V, error) {
	var out []V
	err := t.Iter(txn, k, func(v V) (bool, error) {
		out = append(out, v)
		return true, nil
	})
	return out, err
}

func (t MultiTable[K, V]) scan(txn *Txn, k K, reverse bool, fn func(rawKey []byte, v V) (bool, error)) error {
	prefix := t.keyPrefix(k)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = reverse
	if reverse {
		// badger's reverse iteration needs a seek key that sorts after
		// every key with this prefix.
		opts.Prefix = nil
	} else {
		opts.Prefix = prefix
	}

	it := txn.badger.NewIterator(opts)
	defer it.Close()

	seek := prefix
	if reverse {
		// 0xFF sorts after every byte a Codec in this package emits
		// (none of our value encodings use 0xFF as a leading byte), so
		// this is a valid upper-bound seek for "last key with this
		// prefix" without badger needing a native prefix+Reverse mode.
		seek = append(append([]byte{}, prefix...), 0xFF)
	}

	for it.Seek(seek); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		v, err := t.Value.Decode(key[len(prefix):])
		if err != nil {
			return fmt.Errorf("pristine: decoding multimap value: %w", err)
		}
		keepGoing, err := fn(key, v)
		if err != nil {
			return err
		}
		if !keepGoing {
			return nil
		}
	}
	return nil
}
