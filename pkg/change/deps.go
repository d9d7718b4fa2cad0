package change

import "github.com/castingclouds/atomic-go/pkg/ids"

// ReferencedHashes scans every atom of hunks and returns the set of change
// hashes it touches — spec §4.3 "Dependencies. ... union of every change
// hash touched by any atom", grounded on
// original_source/libatomic/src/change.rs's `dependencies` function. The
// returned map never contains the zero Hash.
//
// The original additionally collects "zombie" ancestors for deleted-context
// repair by consulting the live graph (add_zombie_deps_from/to); that part
// needs pristine access this package deliberately doesn't have, so this
// function does not collect them and extra_known is left to the caller.
func ReferencedHashes(hunks []Hunk) map[ids.Hash]struct{} {
	deps := map[ids.Hash]struct{}{}

	add := func(h ids.Hash) {
		if !h.IsZero() {
			deps[h] = struct{}{}
		}
	}

	for _, hunk := range hunks {
		for _, a := range hunk.Atoms {
			switch a.Kind {
			case AtomNewVertex:
				for _, p := range a.Vertex.UpContext {
					add(p.Change)
				}
				for _, p := range a.Vertex.DownContext {
					add(p.Change)
				}
			case AtomEdgeMap:
				for _, e := range a.EdgeMap.Edges {
					add(e.From.Change)
					add(e.IntroducedBy)
					add(e.To.Change)
				}
			}
		}
	}
	return deps
}

// MinimizeDependencies removes every dependency that is already implied
// transitively by another dependency in the same set (spec §4.3
// "minimized by removing ancestors already implied transitively within the
// channel", §4.6). ancestorsOf returns the direct dependency hashes of a
// given hash as already recorded in the channel; it is supplied by the
// caller, which has pristine access, so this package stays
// storage-independent.
func MinimizeDependencies(deps map[ids.Hash]struct{}, ancestorsOf func(ids.Hash) ([]ids.Hash, error)) ([]ids.Hash, error) {
	redundant := map[ids.Hash]struct{}{}
	for d := range deps {
		reachable, err := transitiveAncestors(d, ancestorsOf, map[ids.Hash]struct{}{})
		if err != nil {
			return nil, err
		}
		for other := range deps {
			if other == d {
				continue
			}
			if _, ok := reachable[other]; ok {
				redundant[other] = struct{}{}
			}
		}
	}

	out := make([]ids.Hash, 0, len(deps))
	for d := range deps {
		if _, skip := redundant[d]; !skip {
			out = append(out, d)
		}
	}
	return out, nil
}

func transitiveAncestors(h ids.Hash, ancestorsOf func(ids.Hash) ([]ids.Hash, error), visited map[ids.Hash]struct{}) (map[ids.Hash]struct{}, error) {
	if _, ok := visited[h]; ok {
		return visited, nil
	}
	visited[h] = struct{}{}
	direct, err := ancestorsOf(h)
	if err != nil {
		return nil, err
	}
	for _, a := range direct {
		if _, err := transitiveAncestors(a, ancestorsOf, visited); err != nil {
			return nil, err
		}
	}
	return visited, nil
}

// SortDependencies orders deps for serialization using the tie-break
// decided for this engine: primarily by the dependency's log position on
// the channel the change is being made against, then by hash for changes
// position can't order (not yet applied anywhere, or applied on a
// different channel) — positionOf returns (position, true) when known.
// This keeps change files byte-reproducible given the same channel state
// and the same dependency set, without depending on map iteration order.
func SortDependencies(deps []ids.Hash, positionOf func(ids.Hash) (uint64, bool)) []ids.Hash {
	out := append([]ids.Hash(nil), deps...)
	less := func(a, b ids.Hash) bool {
		pa, oka := positionOf(a)
		pb, okb := positionOf(b)
		switch {
		case oka && okb:
			if pa != pb {
				return pa < pb
			}
		case oka != okb:
			return oka // known positions sort before unknown ones
		}
		return lessHash(a, b)
	}
	// Simple insertion sort: dependency sets are small (a handful of
	// hashes per change), so this avoids importing sort for one call site.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func lessHash(a, b ids.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
