// Package remote implements the cached remote view and push/pull delta
// computation (spec §4.6): the pristine-wide bookkeeping a repo keeps
// about a remote it has pulled from or pushed to, the dichotomy-point
// binary search that relocates where two changelists last agreed, and the
// set algebra that turns "ours vs cached-theirs" into a concrete list of
// nodes to upload or download.
//
// Grounded on original_source/atomic-remote/src/lib.rs (Node,
// RemoteDelta/PushDelta, dichotomy_changelist). This package does not speak
// to an actual remote: it works entirely in terms of PositionedNode slices
// and a RemoteStateFn the caller builds however it talks to that remote
// (pkg/wire defines the HTTP/SSH contract shapes; a real client decodes
// them into these values before calling into here).
package remote

import (
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// Node identifies one entry of a changelist: either a Change or a Tag,
// together with the channel state it leaves behind once applied. The Go
// analogue of the original's Node struct.
type Node struct {
	Hash     ids.Hash
	NodeType graph.NodeType
	State    ids.Merkle
}

// ChangeNode builds a Node for a plain change.
func ChangeNode(hash ids.Hash, state ids.Merkle) Node {
	return Node{Hash: hash, NodeType: graph.NodeTypeChange, State: state}
}

// TagNode builds a Node for a consolidating tag.
func TagNode(hash ids.Hash, state ids.Merkle) Node {
	return Node{Hash: hash, NodeType: graph.NodeTypeTag, State: state}
}

func (n Node) IsChange() bool { return n.NodeType == graph.NodeTypeChange }
func (n Node) IsTag() bool    { return n.NodeType == graph.NodeTypeTag }

// TypeMarker renders the single-character marker the original's
// changelist wire format prefixes each line with ('C' or 'T'). Node.String
// uses it; pkg/wire's changelist lines do not carry it.
func (n Node) TypeMarker() string {
	if n.IsTag() {
		return "T"
	}
	return "C"
}

func (n Node) String() string {
	return fmt.Sprintf("%s%s:%s", n.TypeMarker(), n.Hash, n.State)
}
