package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/castingclouds/atomic-go/pkg/apply"
	"github.com/castingclouds/atomic-go/pkg/change"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// changesDirName is the on-disk directory holding content-addressed change
// and tag files (spec §6.3 "changes/<two-char-prefix>/<rest>.change").
const changesDirName = "changes"

// FileStore is the content-addressed directory store for change and tag
// files (spec §6.3, §5 "Shared resources": "single-writer per file; writes
// use temp-file + atomic rename"). It knows nothing about the pristine —
// registering a change's NodeId, dependencies, or tag metadata is
// pkg/apply's and pkg/tag's job; FileStore only persists and retrieves the
// canonical bytes spec §6.4 describes.
type FileStore struct {
	root string // <repo>/.atomic/changes
}

// NewFileStore returns a FileStore rooted at <repoDir>/.atomic/changes,
// creating the directory if necessary.
func NewFileStore(repoDir string) (*FileStore, error) {
	root := filepath.Join(repoDir, atomicDirName, changesDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("repo: creating change store %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// changePath returns the two-char-prefix path for hash's change file; tag
// path is the same scheme with a different extension (spec §6.3).
func (s *FileStore) changePath(h ids.Hash) string {
	return s.pathFor(h, "change")
}

func (s *FileStore) tagPath(h ids.Hash) string {
	return s.pathFor(h, "tag")
}

func (s *FileStore) pathFor(h ids.Hash, ext string) string {
	name := h.String()
	prefix := name
	rest := name
	if len(name) > 2 {
		prefix = name[:2]
		rest = name[2:]
	}
	return filepath.Join(s.root, prefix, rest+"."+ext)
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by an atomic rename, so a concurrent reader never observes a
// partially written file (spec §5: "writes use temp-file + atomic
// rename").
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("repo: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("repo: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("repo: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("repo: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("repo: renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// PutChange writes c's canonical byte layout under its own hash, returning
// the hash it was stored under. Writing is idempotent: storing the same
// change twice just overwrites identical bytes with identical bytes.
func (s *FileStore) PutChange(c *change.Change) (ids.Hash, error) {
	h := c.Hash()
	var buf bytes.Buffer
	if err := change.WriteFile(&buf, c); err != nil {
		return ids.NoHash, fmt.Errorf("repo: encoding change %s: %w", h, err)
	}
	if err := writeAtomic(s.changePath(h), buf.Bytes()); err != nil {
		return ids.NoHash, err
	}
	return h, nil
}

// ErrNoSuchChange is returned by GetChange for a hash with no change file.
// It satisfies errors.Is(err, apply.ErrNoSuchChange) so FileStore can be
// used directly wherever an apply.ChangeStore is expected.
var ErrNoSuchChange = apply.ErrNoSuchChange

// GetChange reads and decodes the change stored under h, verifying its
// content hash (change.ReadFile) and its claimed identity hash against the
// requested h (spec §8.1.7 "change-file integrity").
func (s *FileStore) GetChange(h ids.Hash) (*change.Change, error) {
	f, err := os.Open(s.changePath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSuchChange
		}
		return nil, fmt.Errorf("repo: opening change %s: %w", h, err)
	}
	defer f.Close()

	c, err := change.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("repo: reading change %s: %w", h, err)
	}
	if got := c.Hash(); got != h {
		return nil, &change.HashMismatchError{Claimed: h, Computed: got}
	}
	return c, nil
}

// HasChange reports whether a change file exists for h without decoding
// it.
func (s *FileStore) HasChange(h ids.Hash) bool {
	_, err := os.Stat(s.changePath(h))
	return err == nil
}

// PutTagBytes stores the raw materialized tag-file bytes under hash (the
// full form, spec §4.5 "the server regenerates the full form from its own
// channel"). Tag *metadata* used for apply/dependency purposes lives in
// the pristine's tag_metadata table (pkg/tag.Store); this is only the
// on-disk mirror spec §6.3 names.
func (s *FileStore) PutTagBytes(hash ids.Hash, full []byte) error {
	return writeAtomic(s.tagPath(hash), full)
}

// GetTagBytes reads the raw materialized tag-file bytes stored under
// hash.
func (s *FileStore) GetTagBytes(hash ids.Hash) ([]byte, error) {
	b, err := os.ReadFile(s.tagPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("repo: no tag file for %s", hash)
		}
		return nil, fmt.Errorf("repo: reading tag %s: %w", hash, err)
	}
	return b, nil
}
