package change

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// fileVersion is the on-disk layout version, independent of CurrentVersion
// (the hashed-struct encoding version) — spec §6.4 draws the offsets
// header's own version from the same field, but this engine tracks them
// separately since the frame layout and the struct encoding can evolve on
// different schedules.
const fileVersion uint64 = 1

// offsetsHeaderSize is the fixed size of the bincoded offsets header (spec
// §6.4): version, hashed length, unhashed offset+length, contents
// offset+length, total file size — seven u64 fields.
const offsetsHeaderSize = 7 * 8

// offsets mirrors spec §6.4's "offsets header": version, hashed length,
// unhashed offset+length, contents offset+length, total file size.
type offsets struct {
	Version        uint64
	HashedLen      uint64
	UnhashedOffset uint64
	UnhashedLen    uint64
	ContentsOffset uint64
	ContentsLen    uint64
	TotalSize      uint64
}

func (o offsets) encode() []byte {
	b := make([]byte, offsetsHeaderSize)
	binary.BigEndian.PutUint64(b[0:8], o.Version)
	binary.BigEndian.PutUint64(b[8:16], o.HashedLen)
	binary.BigEndian.PutUint64(b[16:24], o.UnhashedOffset)
	binary.BigEndian.PutUint64(b[24:32], o.UnhashedLen)
	binary.BigEndian.PutUint64(b[32:40], o.ContentsOffset)
	binary.BigEndian.PutUint64(b[40:48], o.ContentsLen)
	binary.BigEndian.PutUint64(b[48:56], o.TotalSize)
	return b
}

func decodeOffsets(b []byte) (offsets, error) {
	if len(b) != offsetsHeaderSize {
		return offsets{}, fmt.Errorf("change: offsets header must be %d bytes, got %d", offsetsHeaderSize, len(b))
	}
	return offsets{
		Version:        binary.BigEndian.Uint64(b[0:8]),
		HashedLen:      binary.BigEndian.Uint64(b[8:16]),
		UnhashedOffset: binary.BigEndian.Uint64(b[16:24]),
		UnhashedLen:    binary.BigEndian.Uint64(b[24:32]),
		ContentsOffset: binary.BigEndian.Uint64(b[32:40]),
		ContentsLen:    binary.BigEndian.Uint64(b[40:48]),
		TotalSize:      binary.BigEndian.Uint64(b[48:56]),
	}, nil
}

// WriteFile serializes c to w as [offsets header][zstd: hashed][zstd:
// unhashed][zstd: contents] (spec §6.4).
func WriteFile(w io.Writer, c *Change) error {
	hashedZ, err := zstdCompress(Encode(c.Hashed))
	if err != nil {
		return fmt.Errorf("change: compressing hashed region: %w", err)
	}
	unhashedZ, err := zstdCompress(c.Unhashed)
	if err != nil {
		return fmt.Errorf("change: compressing unhashed region: %w", err)
	}
	contentsZ, err := zstdCompress(c.Contents)
	if err != nil {
		return fmt.Errorf("change: compressing contents region: %w", err)
	}

	o := offsets{
		Version:        fileVersion,
		HashedLen:      uint64(len(hashedZ)),
		UnhashedOffset: offsetsHeaderSize + uint64(len(hashedZ)),
		UnhashedLen:    uint64(len(unhashedZ)),
	}
	o.ContentsOffset = o.UnhashedOffset + o.UnhashedLen
	o.ContentsLen = uint64(len(contentsZ))
	o.TotalSize = o.ContentsOffset + o.ContentsLen

	if _, err := w.Write(o.encode()); err != nil {
		return err
	}
	if _, err := w.Write(hashedZ); err != nil {
		return err
	}
	if _, err := w.Write(unhashedZ); err != nil {
		return err
	}
	if _, err := w.Write(contentsZ); err != nil {
		return err
	}
	return nil
}

// ReadFile parses the byte layout WriteFile produces. It does not itself
// verify the change's hash against a claimed filename — callers (pkg/repo)
// do that once they know which hash they asked for.
func ReadFile(r io.Reader) (*Change, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(all) < offsetsHeaderSize {
		return nil, fmt.Errorf("change: file too short for offsets header")
	}
	o, err := decodeOffsets(all[:offsetsHeaderSize])
	if err != nil {
		return nil, err
	}
	if o.Version != fileVersion {
		return nil, &VersionMismatchError{Got: o.Version}
	}
	if uint64(len(all)) != o.TotalSize {
		return nil, fmt.Errorf("change: file size %d does not match header's total size %d", len(all), o.TotalSize)
	}

	hashedZ := all[offsetsHeaderSize : offsetsHeaderSize+o.HashedLen]
	unhashedZ := all[o.UnhashedOffset : o.UnhashedOffset+o.UnhashedLen]
	contentsZ := all[o.ContentsOffset : o.ContentsOffset+o.ContentsLen]

	hashedBytes, err := zstdDecompress(hashedZ)
	if err != nil {
		return nil, fmt.Errorf("change: decompressing hashed region: %w", err)
	}
	unhashedBytes, err := zstdDecompress(unhashedZ)
	if err != nil {
		return nil, fmt.Errorf("change: decompressing unhashed region: %w", err)
	}
	contentsBytes, err := zstdDecompress(contentsZ)
	if err != nil {
		return nil, fmt.Errorf("change: decompressing contents region: %w", err)
	}

	hashed, err := Decode(hashedBytes)
	if err != nil {
		return nil, fmt.Errorf("change: decoding hashed region: %w", err)
	}

	c := &Change{Hashed: hashed, Unhashed: unhashedBytes, Contents: contentsBytes}
	if !c.VerifyContents() {
		return nil, &ContentsHashMismatchError{Claimed: hashed.ContentsHash, Computed: ids.HashBytes(contentsBytes)}
	}
	return c, nil
}

func zstdCompress(b []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func zstdDecompress(b []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(b, nil)
}
