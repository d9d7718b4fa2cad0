// Package apply implements the apply engine (spec §4.4): applying one
// change or tag to a channel, the recursive dependency-DAG walk, and the
// graph-repair passes that run after every change mutation.
//
// Grounded on original_source/libatomic/src/apply.rs (apply_node_ws,
// apply_node_rec_ws, apply_change_to_channel, the Workspace bookkeeping
// struct) and its edge.rs/vertex.rs/missing_context.rs siblings for the
// repair procedures.
package apply

import (
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// DependencyMissingError is returned when a direct dependency of a change
// is neither an applied change nor a registered tag on the target channel
// (spec §4.4 step 1).
type DependencyMissingError struct {
	Hash ids.Hash
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("apply: dependency missing: %s", e.Hash)
}

// ChangeAlreadyOnChannelError is returned when the change's hash is already
// present in the channel's changes table (spec §4.4 step 2).
type ChangeAlreadyOnChannelError struct {
	Hash ids.Hash
}

func (e *ChangeAlreadyOnChannelError) Error() string {
	return fmt.Sprintf("apply: change already on channel: %s", e.Hash)
}

// TagAlreadyOnChannelError is the tag sibling of ChangeAlreadyOnChannelError.
type TagAlreadyOnChannelError struct {
	Hash ids.Hash
}

func (e *TagAlreadyOnChannelError) Error() string {
	return fmt.Sprintf("apply: tag already on channel: %s", e.Hash)
}

// TagStateMismatchError is returned when a tag's recorded state does not
// match the channel's current Merkle at the time it is applied (spec §4.4
// step 6).
type TagStateMismatchError struct {
	TagHash                    ids.Hash
	ExpectedState, ActualState ids.Merkle
}

func (e *TagStateMismatchError) Error() string {
	return fmt.Sprintf("apply: tag %s state mismatch: expected %s, got %s", e.TagHash, e.ExpectedState, e.ActualState)
}

// TagNotRegisteredError describes a hash asked to be applied as a Tag that
// has no tag metadata registered. The apply paths in this package do not
// return it: a hash with neither a change file nor tag metadata yields
// *ErrNotFound.
type TagNotRegisteredError struct {
	Hash ids.Hash
}

func (e *TagNotRegisteredError) Error() string {
	return fmt.Sprintf("apply: tag not registered: %s", e.Hash)
}

// InvalidChangeError marks a change whose atoms are structurally
// inconsistent with the graph they're being applied to (spec §4.4
// "invalid-change").
type InvalidChangeError struct {
	Reason string
}

func (e *InvalidChangeError) Error() string {
	return fmt.Sprintf("apply: invalid change: %s", e.Reason)
}

// CorruptionError marks a state the engine considers unreachable in a
// correctly-functioning pristine (e.g. a registered hash with no
// node_type and no change/tag data).
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("apply: corruption: %s", e.Reason)
}
