package change

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

func sampleChange(t *testing.T) *Change {
	t.Helper()
	h1 := ids.HashBytes([]byte("dep-one"))
	h2 := ids.HashBytes([]byte("dep-two"))

	hunk := Hunk{
		Kind: HunkEdit,
		Atoms: []Atom{
			{
				Kind: AtomNewVertex,
				Vertex: NewVertex{
					UpContext:   []HashPosition{{Change: h1, Pos: 4}},
					DownContext: []HashPosition{{Change: ids.NoHash, Pos: 0}},
					Flag:        graph.EdgeFlags(0),
					Start:       0,
					End:         5,
					Inode:       HashPosition{Change: h1, Pos: 0},
				},
			},
			{
				Kind: AtomEdgeMap,
				EdgeMap: EdgeMap{
					Edges: []NewEdge{
						{
							Previous:     0,
							Flag:         graph.FlagDeleted,
							From:         HashPosition{Change: h1, Pos: 1},
							To:           HashVertex{Change: h2, Start: 0, End: 3},
							IntroducedBy: h2,
						},
					},
					Inode: HashPosition{Change: h1, Pos: 0},
				},
			},
		},
	}

	return New(
		Header{
			Message:   "edit file.txt",
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Authors:   []Author{{"name": "ada", "email": "ada@example.com"}},
		},
		[]ids.Hash{h1, h2},
		nil,
		[]byte("meta"),
		[]Hunk{hunk},
		[]byte("hello, world"),
		nil,
	)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := sampleChange(t)
	encoded := Encode(c.Hashed)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, c.Hashed, decoded)
}

func TestHashIsDeterministic(t *testing.T) {
	c1 := sampleChange(t)
	c2 := sampleChange(t)
	require.Equal(t, c1.Hash(), c2.Hash())
}

func TestHashChangesWithContent(t *testing.T) {
	c1 := sampleChange(t)
	c2 := sampleChange(t)
	c2.Hashed.Header.Message = "a different message"
	require.NotEqual(t, c1.Hash(), c2.Hash())
}

func TestVerifyContentsDetectsMismatch(t *testing.T) {
	c := sampleChange(t)
	require.True(t, c.VerifyContents())

	c.Contents = []byte("tampered")
	require.False(t, c.VerifyContents())
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	c := sampleChange(t)
	c.Hashed.Version = CurrentVersion + 1
	encoded := Encode(c.Hashed)

	_, err := Decode(encoded)
	require.Error(t, err)
	var verErr *VersionMismatchError
	require.ErrorAs(t, err, &verErr)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	c := sampleChange(t)
	encoded := Encode(c.Hashed)

	_, err := Decode(encoded[:len(encoded)-10])
	require.Error(t, err)
}

func TestTagMetadataRoundTrip(t *testing.T) {
	c := sampleChange(t)
	c.Hashed.Tag = &TagMetadata{
		Version:                 "1.2.0",
		Channel:                 "main",
		ConsolidatedChangeCount: 4,
		DependencyCountBefore:   2,
		ConsolidatedChanges:     []ids.Hash{ids.HashBytes([]byte("a")), ids.HashBytes([]byte("b"))},
		Metadata:                map[string]string{"b": "2", "a": "1"},
	}

	encoded := Encode(c.Hashed)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, c.Hashed.Tag, decoded.Tag)
}
