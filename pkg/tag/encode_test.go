package tag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	prev := ids.HashBytes([]byte("prev-tag"))
	c1 := ids.HashBytes([]byte("change-1"))
	c2 := ids.HashBytes([]byte("change-2"))

	t1 := New(ids.NoMerkle.Combine(c1).Combine(c2), "main", prev, 12, []ids.Hash{c1, c2}, 1700000000)
	t1.Version = "1.2.0"
	t1.Message = "release cut"
	t1.CreatedBy = "alice"
	t1.Metadata = map[string]string{"ci": "green", "reviewed_by": "bob"}
	t1.Finalize()

	decoded, err := Decode(Encode(t1))
	require.NoError(t, err)
	decoded.TagHash = t1.TagHash // Decode never recomputes TagHash itself

	require.Equal(t, t1, decoded)
}

func TestFinalizeReflectsEveryField(t *testing.T) {
	base := New(ids.NoMerkle, "main", ids.NoHash, 0, nil, 1700000000)
	base.Finalize()
	baseHash := base.TagHash

	withMessage := New(ids.NoMerkle, "main", ids.NoHash, 0, nil, 1700000000)
	withMessage.Message = "hello"
	withMessage.Finalize()

	require.NotEqual(t, baseHash, withMessage.TagHash, "Message must participate in TagHash")
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	t1 := New(ids.NoMerkle, "main", ids.NoHash, 0, nil, 1700000000)
	t1.Finalize()

	full := Encode(t1)
	_, err := Decode(full[:len(full)-1])
	require.Error(t, err)
}
