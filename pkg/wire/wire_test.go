package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/remote"
)

func TestFormatParseID(t *testing.T) {
	got, err := ParseID(FormatID(ids.RemoteId(42)))
	require.NoError(t, err)
	require.Equal(t, ids.RemoteId(42), got)
}

func TestFormatParseStateEmpty(t *testing.T) {
	s, err := ParseState(FormatState(State{Empty: true}))
	require.NoError(t, err)
	require.True(t, s.Empty)
}

func TestFormatParseStateRoundtrip(t *testing.T) {
	var merkle ids.Merkle
	merkle[0] = 7
	var tagHash ids.Hash
	tagHash[0] = 9

	in := State{Position: 3, Merkle: merkle, TagHash: tagHash}
	s, err := ParseState(FormatState(in))
	require.NoError(t, err)
	require.Equal(t, in.Position, s.Position)
	require.Equal(t, in.Merkle, s.Merkle)
	require.Equal(t, in.TagHash, s.TagHash)
}

func TestFormatParseStateNoTag(t *testing.T) {
	var merkle ids.Merkle
	merkle[0] = 1
	in := State{Position: 0, Merkle: merkle}
	s, err := ParseState(FormatState(in))
	require.NoError(t, err)
	require.True(t, s.TagHash.IsZero())
}

func TestFormatParseChangelistLine(t *testing.T) {
	var hash ids.Hash
	hash[0] = 1
	var merkle ids.Merkle
	merkle[0] = 2

	in := ChangelistLine{
		Position: 5,
		Node:     remote.ChangeNode(hash, merkle),
		Tagged:   true,
	}
	line := FormatChangelistLine(in)
	out, err := ParseChangelistLine(line, graph.NodeTypeChange)
	require.NoError(t, err)
	require.Equal(t, in.Position, out.Position)
	require.Equal(t, in.Node.Hash, out.Node.Hash)
	require.Equal(t, in.Node.State, out.Node.State)
	require.True(t, out.Tagged)
}

func TestTagFrameRoundtrip(t *testing.T) {
	short := []byte("some short-form tag bytes")
	frame := FormatTagFrame(short)
	got, err := ParseTagFrame(frame)
	require.NoError(t, err)
	require.Equal(t, short, got)
}

func TestTagFrameRejectsTruncated(t *testing.T) {
	frame := FormatTagFrame([]byte("hello"))
	_, err := ParseTagFrame(frame[:len(frame)-1])
	require.Error(t, err)
}

func TestRepoPathString(t *testing.T) {
	p := RepoPath{Tenant: "acme", Portfolio: "widgets", Project: "core"}
	require.Equal(t, "/acme/widgets/core/code", p.String())
	p.Atomic = true
	require.Equal(t, "/acme/widgets/core/code/.atomic", p.String())
}

func TestParseCommandID(t *testing.T) {
	cmd, err := ParseCommand("id main")
	require.NoError(t, err)
	require.Equal(t, CmdID, cmd.Kind)
	require.Equal(t, "main", cmd.Channel)
	require.Equal(t, "id main", FormatCommand(cmd))
}

func TestParseCommandChangelist(t *testing.T) {
	cmd, err := ParseCommand("changelist main 12")
	require.NoError(t, err)
	require.Equal(t, CmdChangelist, cmd.Kind)
	require.Equal(t, "main", cmd.Channel)
	require.Equal(t, uint64(12), cmd.From)
}

func TestParseCommandTagupWithChannel(t *testing.T) {
	var merkle ids.Merkle
	merkle[0] = 3
	cmd := Command{Kind: CmdTagup, Merkle: merkle, ToChannel: "release"}
	line := FormatCommand(cmd)

	parsed, err := ParseCommand(line)
	require.NoError(t, err)
	require.Equal(t, CmdTagup, parsed.Kind)
	require.Equal(t, "release", parsed.ToChannel)
	require.Equal(t, merkle, parsed.Merkle)
}

func TestParseCommandApply(t *testing.T) {
	var hash ids.Hash
	hash[0] = 4
	cmd := Command{Kind: CmdApply, Channel: "main", Hash: hash}
	parsed, err := ParseCommand(FormatCommand(cmd))
	require.NoError(t, err)
	require.Equal(t, CmdApply, parsed.Kind)
	require.Equal(t, "main", parsed.Channel)
	require.Equal(t, hash, parsed.Hash)
}

func TestParseCommandIdentitiesWithAndWithoutSince(t *testing.T) {
	cmd, err := ParseCommand("identities")
	require.NoError(t, err)
	require.Equal(t, CmdIdentities, cmd.Kind)
	require.False(t, cmd.HasSince)

	cmd, err = ParseCommand("identities 1000")
	require.NoError(t, err)
	require.True(t, cmd.HasSince)
	require.Equal(t, uint64(1000), cmd.Since)
}

func TestParseCommandArchiveOptionalMerkle(t *testing.T) {
	cmd, err := ParseCommand("archive main")
	require.NoError(t, err)
	require.Equal(t, CmdArchive, cmd.Kind)
	require.True(t, cmd.Merkle.IsZero())

	var merkle ids.Merkle
	merkle[0] = 1
	cmd2 := Command{Kind: CmdArchive, Channel: "main", Merkle: merkle}
	parsed, err := ParseCommand(FormatCommand(cmd2))
	require.NoError(t, err)
	require.Equal(t, merkle, parsed.Merkle)
}

func TestParseCommandRejectsUnknownVerb(t *testing.T) {
	_, err := ParseCommand("frobnicate main")
	require.Error(t, err)
}
