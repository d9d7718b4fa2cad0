package repo

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/pristine"
	"github.com/castingclouds/atomic-go/pkg/remote"
	"github.com/castingclouds/atomic-go/pkg/tag"
)

// atomicDirName is the on-disk working-copy control directory (spec §6.3
// "<repo>/.atomic/").
const atomicDirName = ".atomic"

// configFileName is the repository configuration file (spec §6.3
// "config").
const configFileName = "config"

// pristineDirName is the pristine store's directory (spec §6.3
// "pristine/db").
const pristineDirName = "pristine"

// identitiesDirName holds identity JSON blobs (spec §6.3 "identities/").
const identitiesDirName = "identities"

// Repository is the top-level embedding API that binds every engine
// package to one repository's on-disk layout: the pristine store, the
// content-addressed change/tag file store, the repository's tables, and
// its configuration. It plays the role the teacher's pkg/nornicdb facade
// plays for a NornicDB database — the one object an outer caller (cmd/atomic,
// or a future HTTP/SSH server) opens and holds for the life of a process.
type Repository struct {
	Dir    string // the working-copy root (parent of .atomic)
	Config *Config

	Pristine *pristine.Pristine
	Files    *FileStore

	GraphTables  *graph.Tables
	TagTables    *tag.Tables
	RemoteTables *remote.Tables
	TagStore     *tag.Store
}

// atomicDir returns <dir>/.atomic.
func atomicDir(dir string) string { return filepath.Join(dir, atomicDirName) }

// Init creates a fresh repository rooted at dir: the .atomic directory
// tree, a default config, and an empty pristine store.
func Init(dir string) (*Repository, error) {
	ad := atomicDir(dir)
	if _, err := os.Stat(ad); err == nil {
		return nil, fmt.Errorf("repo: %s already contains a repository", dir)
	}
	for _, sub := range []string{pristineDirName, changesDirName, identitiesDirName} {
		if err := os.MkdirAll(filepath.Join(ad, sub), 0o755); err != nil {
			return nil, fmt.Errorf("repo: creating %s: %w", sub, err)
		}
	}
	cfg := DefaultConfig()
	if err := cfg.Save(filepath.Join(ad, configFileName)); err != nil {
		return nil, err
	}
	return Open(dir)
}

// Open opens an existing repository rooted at dir.
func Open(dir string) (*Repository, error) {
	ad := atomicDir(dir)
	cfg, err := LoadConfig(filepath.Join(ad, configFileName))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := pristine.Open(pristine.Options{
		Path:       filepath.Join(ad, pristineDirName),
		SyncWrites: cfg.Core.SyncWrites,
	})
	if err != nil {
		return nil, err
	}

	files, err := NewFileStore(dir)
	if err != nil {
		p.Close()
		return nil, err
	}

	return &Repository{
		Dir:          dir,
		Config:       cfg,
		Pristine:     p,
		Files:        files,
		GraphTables:  graph.NewTables(),
		TagTables:    tag.NewTables(),
		RemoteTables: remote.NewTables(),
		TagStore:     tag.NewStore(tag.NewTables()),
	}, nil
}

// OpenInMemory opens a repository backed by an in-memory pristine and a
// change-file store under a caller-supplied scratch directory — the
// combination dry runs and tests use instead of a full on-disk repository
// (spec §4.1 "anonymous" mode).
func OpenInMemory(scratchDir string) (*Repository, error) {
	p, err := pristine.OpenInMemory()
	if err != nil {
		return nil, err
	}
	files, err := NewFileStore(scratchDir)
	if err != nil {
		p.Close()
		return nil, err
	}
	tagTables := tag.NewTables()
	return &Repository{
		Dir:          scratchDir,
		Config:       DefaultConfig(),
		Pristine:     p,
		Files:        files,
		GraphTables:  graph.NewTables(),
		TagTables:    tagTables,
		RemoteTables: remote.NewTables(),
		TagStore:     tag.NewStore(tagTables),
	}, nil
}

// Close releases the repository's pristine store.
func (r *Repository) Close() error {
	return r.Pristine.Close()
}

// Channel opens a handle onto the named channel (spec §3.3). Channels are
// created implicitly by the first write against them — Channel never
// touches storage itself.
func (r *Repository) Channel(name string) *graph.Channel {
	return graph.Open(name, r.GraphTables)
}

// DefaultChannel opens the repository's configured default channel.
func (r *Repository) DefaultChannel() *graph.Channel {
	return r.Channel(r.Config.Core.DefaultChannel)
}

// NextRemoteID allocates a fresh nonce for a newly cached remote view
// (spec §3.1 RemoteId). Unlike NodeId, which the pristine hands out from a
// persisted counter (graph.Tables.AllocateNodeId), a RemoteId only needs
// to be unique among the remotes *this* repository caches, so a random
// 63-bit value is used. It is not checked against the remotes already
// cached, so a (vanishingly unlikely) collision goes undetected.
func (r *Repository) NextRemoteID() ids.RemoteId {
	return ids.RemoteId(rand.Uint64() >> 1)
}
