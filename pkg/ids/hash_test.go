package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	h := HashBytes([]byte("hello\n"))
	require.False(t, h.IsZero())

	s := h.String()
	parsed, err := ParseHash(s)
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestParseHashRejectsWrongLength(t *testing.T) {
	_, err := ParseHash("AAAA")
	require.Error(t, err)
}

func TestMerkleCombineIsCommutative(t *testing.T) {
	hx := HashBytes([]byte("X"))
	hy := HashBytes([]byte("Y"))

	m1 := NoMerkle.Combine(hx).Combine(hy)
	m2 := NoMerkle.Combine(hy).Combine(hx)
	require.Equal(t, m1, m2, "applying changes in either order must yield the same channel state")

	m3 := NoMerkle.Combine(hx).Combine(hy)
	require.Equal(t, m1, m3, "combining the same set twice must be deterministic")
}

func TestNoMerkleIsZero(t *testing.T) {
	require.True(t, NoMerkle.IsZero())
	require.True(t, NoHash.IsZero())
}
