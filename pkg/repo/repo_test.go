package repo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castingclouds/atomic-go/pkg/apply"
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
)

// leafChange builds a trivial single-atom change adding one vertex hung
// off the channel root, mirroring pkg/apply's own test helper.
func leafChange(message string) *change.Change {
	hunk := change.Hunk{
		Kind: change.HunkFileAdd,
		Atoms: []change.Atom{{
			Kind: change.AtomNewVertex,
			Vertex: change.NewVertex{
				UpContext: []change.HashPosition{{Change: ids.NoHash, Pos: 0}},
				Flag:      graph.FlagFolder,
				Start:     0,
				End:       10,
			},
		}},
	}
	return change.New(change.Header{Message: message}, nil, nil, nil, []change.Hunk{hunk}, []byte("hello\n"), nil)
}

func TestInitOpenRoundtrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r2, err := Open(dir)
	require.NoError(t, err)
	defer r2.Close()
	require.Equal(t, "main", r2.Config.Core.DefaultChannel)

	_, err = Init(dir)
	require.Error(t, err, "Init must refuse to overwrite an existing repository")
}

func TestFileStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	c := leafChange("add a.txt")
	h, err := fs.PutChange(c)
	require.NoError(t, err)
	require.Equal(t, c.Hash(), h)

	require.True(t, fs.HasChange(h))

	got, err := fs.GetChange(h)
	require.NoError(t, err)
	require.Equal(t, c.Hashed, got.Hashed)
	require.Equal(t, c.Contents, got.Contents)

	_, err = fs.GetChange(ids.Hash{0xff})
	require.ErrorIs(t, err, ErrNoSuchChange)
}

func TestApplyThroughRepository(t *testing.T) {
	// Mirrors spec §8.4 S1: a single change on a fresh channel, applied
	// through the repository's own ChangeStoreFor wiring rather than a
	// test-only map store.
	r, err := OpenInMemory(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	c := leafChange("add a.txt")
	h, err := r.Files.PutChange(c)
	require.NoError(t, err)

	ch := r.DefaultChannel()

	var position uint64
	var merkle ids.Merkle
	err = r.Pristine.Update(func(w *pristine.WriteTxn) error {
		store := r.ChangeStoreFor(&w.Txn)
		position, merkle, err = apply.ApplyNodeWS(w, r.GraphTables, ch, store, h)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), position)
	require.False(t, merkle.IsZero())

	var state ids.Merkle
	err = r.Pristine.View(func(txn *pristine.Txn) error {
		var verr error
		state, verr = ch.CurrentState(txn)
		return verr
	})
	require.NoError(t, err)
	require.Equal(t, merkle, state)

	// Applying the same hash again must fail per spec §4.4 step 2.
	err = r.Pristine.Update(func(w *pristine.WriteTxn) error {
		store := r.ChangeStoreFor(&w.Txn)
		_, _, err := apply.ApplyNodeWS(w, r.GraphTables, ch, store, h)
		return err
	})
	require.Error(t, err)
	var already *apply.ChangeAlreadyOnChannelError
	require.ErrorAs(t, err, &already)
}

func TestIdentityRoundtrip(t *testing.T) {
	r, err := OpenInMemory(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, r.PutIdentity(Identity{KeyID: "old", Name: "Old Author", ModifiedAt: old}))

	cutoff := time.Now().UTC()
	require.NoError(t, r.PutIdentity(Identity{KeyID: "new", Name: "New Author"}))

	got, err := r.GetIdentity("new")
	require.NoError(t, err)
	require.Equal(t, "New Author", got.Name)

	since, err := r.IdentitiesSince(cutoff)
	require.NoError(t, err)
	require.Len(t, since, 1)
	require.Equal(t, "new", since[0].KeyID)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Core.DefaultChannel = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Remotes["origin"] = RemoteConfig{Address: ""}
	require.Error(t, cfg.Validate())
}

func TestConfigSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")

	cfg := DefaultConfig()
	cfg.Remotes["origin"] = RemoteConfig{Address: "ssh://example.com/repo", Channel: "main"}
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Core.DefaultChannel, loaded.Core.DefaultChannel)
	require.Equal(t, "ssh://example.com/repo", loaded.Remotes["origin"].Address)
}
