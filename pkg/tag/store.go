package tag

import (
	"github.com/castingclouds/atomic-go/pkg/apply"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// Pristine-wide table prefixes for tag storage (spec §3.4 `tag_metadata`,
// `tag_attribution`). 0x18-0x1f are reserved for future pristine-wide
// registries alongside pkg/graph's 0x10-0x17; 0x20/0x21 are the next free
// bytes.
const (
	prefixTagMetadata    byte = 0x20
	prefixTagAttribution byte = 0x21
)

var hashCodec = pristine.FixedCodec[ids.Hash]()

var rawBytesCodec = pristine.Codec[[]byte]{
	Encode: func(b []byte) []byte { return b },
	Decode: func(b []byte) ([]byte, error) { return append([]byte{}, b...), nil },
}

// Tables bundles the tag engine's pristine-wide storage.
type Tables struct {
	// Metadata maps a tag's TagHash to its canonical encoding (spec §3.4
	// `tag_metadata`).
	Metadata pristine.Table[ids.Hash, []byte]

	// Attribution holds the encoded apply.AttributionSummary that
	// SummarizeAndStore records for a tag, keyed by TagHash (spec §3.4
	// `tag_attribution`); GetAttributionSummary decodes it.
	Attribution pristine.Table[ids.Hash, []byte]
}

// NewTables constructs the tag engine's table set.
func NewTables() *Tables {
	return &Tables{
		Metadata:    pristine.Table[ids.Hash, []byte]{Prefix: prefixTagMetadata, Key: hashCodec, Value: rawBytesCodec},
		Attribution: pristine.Table[ids.Hash, []byte]{Prefix: prefixTagAttribution, Key: hashCodec, Value: rawBytesCodec},
	}
}

// Store persists and resolves consolidating tags, grounded on
// original_source/libatomic/src/pristine/tag.rs's Txn::get_tag /
// put_tags methods.
type Store struct {
	Tables *Tables
}

// NewStore wraps t as a Store.
func NewStore(t *Tables) *Store { return &Store{Tables: t} }

// ErrNoSuchTag mirrors apply.ErrNoSuchTag so Store satisfies the shape
// apply.ChangeStore.GetTag expects without pkg/apply needing to know about
// pkg/tag.
var ErrNoSuchTag = apply.ErrNoSuchTag

// Get loads and decodes the tag stored under hash.
func (s *Store) Get(txn *pristine.Txn, hash ids.Hash) (*Tag, error) {
	b, ok, err := s.Tables.Metadata.Get(txn, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSuchTag
	}
	t, err := Decode(b)
	if err != nil {
		return nil, err
	}
	t.TagHash = hash
	return t, nil
}

// Has reports whether a tag is stored under hash, without decoding it.
func (s *Store) Has(txn *pristine.Txn, hash ids.Hash) (bool, error) {
	return s.Tables.Metadata.Has(txn, hash)
}

// Put persists t under its own TagHash. Per the non-destruction invariant
// (spec §4.5), tags are only ever added, never overwritten in place with
// different content — callers should not call Put twice for the same hash
// with differing encodings.
func (s *Store) Put(txn *pristine.WriteTxn, t *Tag) error {
	return s.Tables.Metadata.Put(txn, t.TagHash, Encode(t))
}

// GetTagRecord adapts a stored Tag to the minimal shape pkg/apply needs
// (apply.ChangeStore.GetTag), translating ErrNoSuchTag to
// apply.ErrNoSuchTag (the same sentinel, re-exported above) so
// errors.Is(err, apply.ErrNoSuchTag) works regardless of which package
// the caller imported the sentinel from.
func (s *Store) GetTagRecord(txn *pristine.Txn, hash ids.Hash) (*apply.TagRecord, error) {
	t, err := s.Get(txn, hash)
	if err != nil {
		return nil, err
	}
	return &apply.TagRecord{State: t.State, ConsolidatedChanges: t.ConsolidatedChanges}, nil
}

// PutAttribution records an opaque attribution blob alongside a tag.
func (s *Store) PutAttribution(txn *pristine.WriteTxn, hash ids.Hash, data []byte) error {
	return s.Tables.Attribution.Put(txn, hash, append([]byte{}, data...))
}

// GetAttribution returns the attribution blob recorded for hash, if any.
func (s *Store) GetAttribution(txn *pristine.Txn, hash ids.Hash) ([]byte, bool, error) {
	return s.Tables.Attribution.Get(txn, hash)
}
