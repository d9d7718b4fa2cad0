package tag

import (
	"github.com/castingclouds/atomic-go/pkg/apply"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// SummarizeAndStore folds t.ConsolidatedChanges' opaque Unhashed bytes into
// an apply.AttributionSummary via changeStore and persists it alongside t
// in tag_attribution (spec §3.4 `tag_attribution`). Callers that don't
// need attribution data (e.g. tests against a bare ChangeStore stub) can
// skip this — Create/Materialize never call it implicitly, since it needs
// a ChangeStore this package otherwise has no reason to depend on.
func (s *Store) SummarizeAndStore(txn *pristine.WriteTxn, changeStore apply.ChangeStore, t *Tag) (*apply.AttributionSummary, error) {
	summary, err := apply.Summarize(changeStore, t.ConsolidatedChanges)
	if err != nil {
		return nil, err
	}
	if err := s.PutAttribution(txn, t.TagHash, apply.EncodeAttributionSummary(summary)); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetAttributionSummary decodes the attribution summary stored for hash,
// if any.
func (s *Store) GetAttributionSummary(txn *pristine.Txn, hash ids.Hash) (*apply.AttributionSummary, bool, error) {
	b, ok, err := s.GetAttribution(txn, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	summary, err := apply.DecodeAttributionSummary(b)
	if err != nil {
		return nil, false, err
	}
	return summary, true, nil
}
