package repo

import (
	"github.com/castingclouds/atomic-go/pkg/apply"
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// changeStore adapts a Repository's on-disk FileStore (for changes) and
// pristine-backed tag.Store (for tags) into a single apply.ChangeStore,
// bound to one read-only view of the pristine. apply.ChangeStore's
// GetChange/GetTag methods take no transaction argument, but tag lookups
// need one (tag metadata lives in the pristine, not on disk) — so this
// type closes over the *pristine.Txn the caller is already inside, the
// same "bind a transaction into a narrower interface for the duration of
// one call" shape pkg/apply's own writeCtx uses internally.
type changeStore struct {
	files *FileStore
	tags  tagResolver
	txn   *pristine.Txn
}

// tagResolver is the subset of *tag.Store this package depends on,
// expressed as an interface so tests can substitute a fake without
// wiring a real pristine transaction just to satisfy the type checker.
type tagResolver interface {
	GetTagRecord(txn *pristine.Txn, hash ids.Hash) (*apply.TagRecord, error)
}

// ChangeStoreFor returns an apply.ChangeStore view bound to txn, suitable
// for a single call to apply.ApplyNodeWS/ApplyNodeRec made from inside a
// pristine.Update/View closure.
func (r *Repository) ChangeStoreFor(txn *pristine.Txn) apply.ChangeStore {
	return &changeStore{files: r.Files, tags: r.TagStore, txn: txn}
}

func (s *changeStore) GetChange(h ids.Hash) (*change.Change, error) {
	return s.files.GetChange(h)
}

func (s *changeStore) GetTag(h ids.Hash) (*apply.TagRecord, error) {
	return s.tags.GetTagRecord(s.txn, h)
}
