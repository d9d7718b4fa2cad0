package remote

import "github.com/castingclouds/atomic-go/pkg/pristine"

// RemoteStateFn answers "what Node sits at this position in the remote's
// changelist right now?", the one round-trip this package needs a caller
// to provide (via whatever pkg/wire transport is actually in play). A
// position beyond the remote's current changelist reports found=false.
type RemoteStateFn func(position uint64) (node Node, found bool, err error)

// DichotomyPoint finds the boundary position at and after which our
// cached view of a remote's changelist can no longer be trusted — the
// point the two sides last verifiably agreed (spec §4.6, grounded on
// dichotomy_changelist). Positions below the returned value need no
// re-verification; positions at or above it must be re-fetched from the
// remote before push/pull delta computation trusts them.
//
// This binary-searches rather than re-downloading the whole cached range:
// a remote usually hasn't changed since we last looked, so the common
// case is one round-trip (checking the last cached position), not one per
// position.
func DichotomyPoint(txn *pristine.Txn, cache *Cache, remoteState RemoteStateFn) (uint64, error) {
	count, err := cache.Count(txn)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	b := count - 1
	a := uint64(0)

	if cachedAtB, ok, err := cache.At(txn, b); err != nil {
		return 0, err
	} else if ok {
		remoteAtB, found, err := remoteState(b)
		if err != nil {
			return 0, err
		}
		if found && remoteAtB == cachedAtB {
			// The cache's entire known range is still current.
			return b + 1, nil
		}
	}

	for a < b {
		mid := (a + b) / 2
		agree := false
		if cachedMid, ok, err := cache.At(txn, mid); err != nil {
			return 0, err
		} else if ok {
			remoteMid, found, err := remoteState(mid)
			if err != nil {
				return 0, err
			}
			agree = found && remoteMid == cachedMid
		}
		if agree {
			if a == mid {
				return a + 1, nil
			}
			a = mid
			continue
		}
		if b == mid {
			break
		}
		b = mid
	}
	return a, nil
}
