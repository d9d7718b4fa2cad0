package ids

import (
	"math/big"

	"lukechampine.com/blake3"
)

// twoTo256 is the modulus for the rolling-state accumulator below.
var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// merkleCombine folds next into prev as modular addition over the 256-bit
// hash space: merkle(S) = (Σ_{h in S} h) mod 2^256.
//
// This is deliberately commutative and associative rather than a chained
// digest (blake2b(prev||next)): spec §5 requires that applying a set of
// commuting changes yields the same Merkle regardless of the order they
// were requested in, and a running sum over the hash space gives that for
// free — the rolling state is a function of the *set* of applied changes,
// not the sequence, which matches "the cumulative hash of all changes
// applied" in spec §3.1 exactly (tags never call this, per spec §4.4, so
// they never perturb it).
func merkleCombine(prev Merkle, next Hash) Merkle {
	sum := new(big.Int).Add(bigFromDigest(prev[:]), bigFromDigest(next[:]))
	sum.Mod(sum, twoTo256)

	var out Merkle
	b := sum.Bytes() // big-endian, no leading zero padding
	copy(out[hashSize-len(b):], b)
	return out
}

func bigFromDigest(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// HashBytes computes the canonical Hash of arbitrary bytes using Blake3
// (spec §4.3 "Hashing", §8.1.7 "Change-file integrity" both name Blake3
// explicitly). pkg/change uses this over a change's canonical
// serialization and over its contents region, and pkg/tag over a tag's
// canonical encoding.
func HashBytes(b []byte) Hash {
	var out Hash
	sum := blake3.Sum256(b)
	copy(out[:], sum[:])
	return out
}
