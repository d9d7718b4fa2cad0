// Package change implements the canonical change record (spec §4.3): its
// structure, its hash, and its on-disk byte layout (spec §6.4). A Change is
// the unit of work the apply engine (pkg/apply) consumes; this package
// knows nothing about channels, the pristine, or storage — only how to
// serialize, hash, and frame one change in isolation.
//
// Grounded on original_source/libatomic/src/change.rs for the field set and
// the hashed/unhashed split, and on the teacher's
// pkg/storage/badger_serialization.go for the "dedicated codec file per
// concern" layout (split here into encode.go/decode.go/file.go).
package change

import (
	"time"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// CurrentVersion is the only version this engine writes; readers reject
// anything else (spec §4.3: "readers must reject unknown versions").
const CurrentVersion uint64 = 1

// Author is a free-form set of identity attributes (name, email, key id,
// …), matching the original's permissive key/value author record.
type Author map[string]string

// Header carries a change's free-form metadata (spec §4.3 `header`).
type Header struct {
	Message     string
	Description string
	Timestamp   time.Time
	Authors     []Author
}

// TagMetadata is present on a Hashed iff the change is the serialized form
// of a consolidating tag (spec §4.3 `tag`, §4.5).
type TagMetadata struct {
	Version                 string
	Channel                 string
	ConsolidatedChangeCount uint64
	DependencyCountBefore   uint64
	ConsolidatedChanges     []ids.Hash
	PreviousConsolidation   ids.Hash // NoHash if absent
	ConsolidatesSince       ids.Hash // NoHash if absent
	CreatedBy               string
	Metadata                map[string]string
}

// Hashed is exactly the part of a change that feeds the canonical hash
// (spec §4.3: "bincode-encode the hashed struct (everything except
// unhashed and raw contents)").
type Hashed struct {
	Version      uint64
	Header       Header
	Dependencies []ids.Hash
	ExtraKnown   []ids.Hash
	Metadata     []byte
	Changes      []Hunk
	ContentsHash ids.Hash
	Tag          *TagMetadata
}

// Change is the full record: the hashed struct plus the two regions that
// sit outside the hash (spec §4.3).
type Change struct {
	Hashed Hashed
	// Unhashed carries opaque extra data (e.g. AI-attribution metadata,
	// out of scope for this engine beyond byte-for-byte pass-through).
	Unhashed []byte
	// Contents is the raw byte payload referenced by hunks.
	Contents []byte
}

// Hash computes the change's canonical Hash: Blake3 over the canonical
// encoding of Hashed (spec §4.3 "Hashing").
func (c *Change) Hash() ids.Hash {
	return ids.HashBytes(Encode(c.Hashed))
}

// VerifyContents reports whether c.Contents actually hashes to
// c.Hashed.ContentsHash (spec §8.1.7 "the Blake3 of its contents region
// equals the recorded contents_hash").
func (c *Change) VerifyContents() bool {
	return ids.HashBytes(c.Contents) == c.Hashed.ContentsHash
}

// New builds a Change from its semantic pieces, computing ContentsHash and
// stamping the current version. Dependencies should already be minimized
// and sorted (see SortDependencies) by the time this is called.
func New(header Header, dependencies, extraKnown []ids.Hash, metadata []byte, hunks []Hunk, contents []byte, unhashed []byte) *Change {
	return &Change{
		Hashed: Hashed{
			Version:      CurrentVersion,
			Header:       header,
			Dependencies: dependencies,
			ExtraKnown:   extraKnown,
			Metadata:     metadata,
			Changes:      hunks,
			ContentsHash: ids.HashBytes(contents),
		},
		Unhashed: unhashed,
		Contents: contents,
	}
}

// HunkKind enumerates the higher-level operations spec §4.3 names; each
// lowers to a sequence of atoms.
type HunkKind uint8

const (
	HunkFileAdd HunkKind = iota
	HunkFileDel
	HunkFileUndel
	HunkFileMove
	HunkSolveNameConflict
	HunkUnsolveNameConflict
	HunkEdit
	HunkReplacement
	HunkSolveOrderConflict
	HunkUnsolveOrderConflict
	HunkResurrectZombie
	HunkRoot
)

func (k HunkKind) String() string {
	switch k {
	case HunkFileAdd:
		return "FileAdd"
	case HunkFileDel:
		return "FileDel"
	case HunkFileUndel:
		return "FileUndel"
	case HunkFileMove:
		return "FileMove"
	case HunkSolveNameConflict:
		return "SolveNameConflict"
	case HunkUnsolveNameConflict:
		return "UnsolveNameConflict"
	case HunkEdit:
		return "Edit"
	case HunkReplacement:
		return "Replacement"
	case HunkSolveOrderConflict:
		return "SolveOrderConflict"
	case HunkUnsolveOrderConflict:
		return "UnsolveOrderConflict"
	case HunkResurrectZombie:
		return "ResurrectZombie"
	case HunkRoot:
		return "Root"
	default:
		return "Unknown"
	}
}

// Hunk is one semantic operation, lowered to the atoms that carry its
// actual graph effect (spec §4.3).
type Hunk struct {
	Kind  HunkKind
	Atoms []Atom
}
