package apply

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// registerNode assigns hash a NodeId the first time it is seen and records
// its type and dependency edges, the Go analogue of register_change /
// make_changeid. If hash is already registered, its existing NodeId is
// returned unchanged and dependencies are not re-written (spec §3.1:
// registration is idempotent; a hash always maps to the same NodeId).
func registerNode(txn *writeCtx, hash ids.Hash, nt graph.NodeType, dependencies []ids.Hash) (ids.NodeId, error) {
	if id, ok, err := txn.tables.Internal.Get(&txn.w.Txn, hash); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	id, err := txn.tables.AllocateNodeId(txn.w)
	if err != nil {
		return 0, err
	}
	if err := txn.tables.Internal.Put(txn.w, hash, id); err != nil {
		return 0, err
	}
	if err := txn.tables.External.Put(txn.w, id, hash); err != nil {
		return 0, err
	}
	if err := txn.tables.NodeType.Put(txn.w, id, nt); err != nil {
		return 0, err
	}

	for _, depHash := range dependencies {
		depID, err := resolveOrRegisterDependency(txn, depHash)
		if err != nil {
			return 0, err
		}
		if err := txn.tables.Dep.Put(txn.w, id, depID); err != nil {
			return 0, err
		}
		if err := txn.tables.RevDep.Put(txn.w, depID, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// resolveOrRegisterDependency looks up a dependency's NodeId, registering a
// placeholder Change entry for it if this is the first time the pristine
// has seen that hash. This happens when a dependency was resolved from a
// tag's consolidated_changes list before the underlying change itself was
// ever directly applied (spec §4.5): the pristine still needs a NodeId to
// record the Dep edge against.
func resolveOrRegisterDependency(txn *writeCtx, hash ids.Hash) (ids.NodeId, error) {
	if id, ok, err := txn.tables.Internal.Get(&txn.w.Txn, hash); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}
	id, err := txn.tables.AllocateNodeId(txn.w)
	if err != nil {
		return 0, err
	}
	if err := txn.tables.Internal.Put(txn.w, hash, id); err != nil {
		return 0, err
	}
	if err := txn.tables.External.Put(txn.w, id, hash); err != nil {
		return 0, err
	}
	return id, nil
}

// nodeIDOf resolves an already-registered hash to its NodeId.
func nodeIDOf(txn *writeCtx, hash ids.Hash) (ids.NodeId, bool, error) {
	return txn.tables.Internal.Get(&txn.w.Txn, hash)
}
