package change

import (
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// VersionMismatchError is returned when a change file (or wire payload)
// declares a version this engine does not write (spec §4.3: "readers must
// reject unknown versions").
type VersionMismatchError struct {
	Got uint64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("change: version mismatch, got %d, want %d", e.Got, CurrentVersion)
}

// HashMismatchError is returned when a change's computed Hash does not
// match what the caller expected it to be — e.g. the hash encoded in a
// change file's own filename (spec §8.1.7).
type HashMismatchError struct {
	Claimed, Computed ids.Hash
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("change: hash mismatch, claimed %s, computed %s", e.Claimed, e.Computed)
}

// ContentsHashMismatchError is returned when a change's Contents region
// does not hash to its recorded ContentsHash (spec §8.1.7).
type ContentsHashMismatchError struct {
	Claimed, Computed ids.Hash
}

func (e *ContentsHashMismatchError) Error() string {
	return fmt.Sprintf("change: contents hash mismatch, claimed %s, computed %s", e.Claimed, e.Computed)
}
