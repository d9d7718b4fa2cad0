package tag

import (
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// Minimize replaces, in deps, every hash covered by a consolidating tag
// with a single reference to that tag's DependencyRef (spec §4.5
// "Tag-aware dependency minimization"). tags must be supplied most-recent
// first: "the most recent covering tag wins" when more than one tag covers
// the same dependency. Dependencies no tag covers survive unchanged, and
// two dependencies both replaced by the same tag collapse to one
// reference.
func Minimize(deps []ids.Hash, tags []*Tag) []ids.Hash {
	covering := make(map[ids.Hash]*Tag, len(deps))
	for _, d := range deps {
		for _, t := range tags {
			if containsHash(t.ConsolidatedChanges, d) {
				covering[d] = t
				break
			}
		}
	}

	out := make([]ids.Hash, 0, len(deps))
	seenRef := map[ids.Hash]bool{}
	for _, d := range deps {
		t, covered := covering[d]
		if !covered {
			out = append(out, d)
			continue
		}
		ref := t.DependencyRef()
		if seenRef[ref] {
			continue
		}
		seenRef[ref] = true
		out = append(out, ref)
	}
	return out
}

// ChannelTags loads every consolidating tag currently applied to ch, most
// recent first — the order Minimize requires so "the most recent
// covering tag wins" (spec §4.5: "the dependency computer enumerates all
// tags currently on the channel"). It walks the channel log backwards
// from the apply counter rather than the sparse `tags` table, since
// `tags` is keyed by state and this needs the tag's own hash to load its
// metadata.
func (s *Store) ChannelTags(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel) ([]*Tag, error) {
	total, err := ch.ApplyCounter(txn)
	if err != nil {
		return nil, err
	}
	var out []*Tag
	for pos := total; pos > 0; pos-- {
		entry, ok, err := ch.LogAt(txn, pos-1)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		nt, _, err := tables.NodeType.Get(txn, entry.Node)
		if err != nil {
			return nil, err
		}
		if nt != graph.NodeTypeTag {
			continue
		}
		t, err := s.Get(txn, entry.Hash)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// MinimizeForChannel is the "optional final pass" spec §4.3 and §4.5
// describe for sealing a new change's dependency set: it loads every tag
// currently on ch and substitutes any that fully cover a proposed
// dependency via Minimize, before the caller runs change.SortDependencies
// over the result.
func (s *Store) MinimizeForChannel(txn *pristine.Txn, tables *graph.Tables, ch *graph.Channel, deps []ids.Hash) ([]ids.Hash, error) {
	tags, err := s.ChannelTags(txn, tables, ch)
	if err != nil {
		return nil, err
	}
	return Minimize(deps, tags), nil
}

func containsHash(hs []ids.Hash, target ids.Hash) bool {
	for _, h := range hs {
		if h == target {
			return true
		}
	}
	return false
}

// Expand performs a depth-first traversal of the dependency DAG from
// start, expanding any dependency that resolves to tag metadata into its
// ConsolidatedChanges (spec §4.5 "Tag-aware dependency expansion"),
// grounded on Tag::traverse_with_tag_expansion. getDeps returns a hash's
// direct dependencies; getTag reports whether hash names a consolidating
// tag and, if so, its metadata. The tag's own hash is included in the
// result alongside everything in its ConsolidatedChanges (spec §8.4 S5:
// the ancestor set of a change depending on tag T is "{C1, ..., C25, T}",
// not just the consolidated changes). The result is every reachable hash
// in visitation order, without duplicates.
func Expand(start ids.Hash, getDeps func(ids.Hash) ([]ids.Hash, error), getTag func(ids.Hash) (*Tag, bool, error)) ([]ids.Hash, error) {
	var all []ids.Hash
	visited := map[ids.Hash]bool{}
	stack := []ids.Hash{start}

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[h] {
			continue
		}
		visited[h] = true
		all = append(all, h)

		deps, err := getDeps(h)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			t, isTag, err := getTag(dep)
			if err != nil {
				return nil, err
			}
			if isTag {
				if !visited[dep] {
					visited[dep] = true
					all = append(all, dep)
				}
				for _, tc := range t.ConsolidatedChanges {
					if !visited[tc] {
						stack = append(stack, tc)
					}
				}
				continue
			}
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return all, nil
}
