package apply

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// AttributionSummary is a content-blind aggregate of the opaque Unhashed
// bytes carried by a set of changes, grounded on
// original_source/libatomic/src/attribution/apply_integration.rs's summary
// folding (spec §1: "opaque bytes carried by changes and summarized per
// tag"). It counts changes and bytes only — it never parses or interprets
// Unhashed — so computing it does not reopen the "AI-attribution metadata"
// Non-goal, which excludes producing or interpreting that metadata, not
// tallying its size.
type AttributionSummary struct {
	ChangeCount        uint64
	AnnotatedCount     uint64 // changes whose Unhashed was non-empty
	TotalUnhashedBytes uint64
}

// Summarize folds every hash in hashes into an AttributionSummary by
// resolving it through store. A hash with no change file (e.g. a nested
// tag reference inside an older consolidation) is skipped rather than
// erroring.
func Summarize(store ChangeStore, hashes []ids.Hash) (*AttributionSummary, error) {
	s := &AttributionSummary{}
	for _, h := range hashes {
		c, err := store.GetChange(h)
		if err != nil {
			if errors.Is(err, ErrNoSuchChange) {
				continue
			}
			return nil, err
		}
		s.ChangeCount++
		if len(c.Unhashed) > 0 {
			s.AnnotatedCount++
			s.TotalUnhashedBytes += uint64(len(c.Unhashed))
		}
	}
	return s, nil
}

// EncodeAttributionSummary produces the canonical byte encoding stored in
// tag_attribution: three fixed big-endian uint64 fields, in declaration
// order.
func EncodeAttributionSummary(s *AttributionSummary) []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint64(b[0:8], s.ChangeCount)
	binary.BigEndian.PutUint64(b[8:16], s.AnnotatedCount)
	binary.BigEndian.PutUint64(b[16:24], s.TotalUnhashedBytes)
	return b
}

// DecodeAttributionSummary parses the bytes EncodeAttributionSummary
// produces.
func DecodeAttributionSummary(b []byte) (*AttributionSummary, error) {
	if len(b) != 24 {
		return nil, fmt.Errorf("apply: attribution summary must be 24 bytes, got %d", len(b))
	}
	return &AttributionSummary{
		ChangeCount:        binary.BigEndian.Uint64(b[0:8]),
		AnnotatedCount:     binary.BigEndian.Uint64(b[8:16]),
		TotalUnhashedBytes: binary.BigEndian.Uint64(b[16:24]),
	}, nil
}
