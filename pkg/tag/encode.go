package tag

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// Encode produces the canonical, deterministic byte encoding of a Tag,
// excluding TagHash itself (the hash is computed over everything else),
// the same "every field in declaration order with explicit length
// prefixes" discipline as change.Encode.
func Encode(t *Tag) []byte {
	var b bytes.Buffer
	w := &tWriter{buf: &b}

	w.optHash(t.ChangeFileHash)
	w.fixed(t.State[:])
	w.str(t.Channel)
	w.i64(t.ConsolidationTimestamp)
	w.optHash(t.PreviousConsolidation)
	w.u64(t.DependencyCountBefore)
	w.u64(t.ConsolidatedChangeCount)
	w.optHash(t.ConsolidatesSince)
	w.hashes(t.ConsolidatedChanges)
	w.optStr(t.Version)
	w.optStr(t.Message)
	w.optStr(t.CreatedBy)
	w.stringMap(t.Metadata)

	return b.Bytes()
}

// Hash computes a Tag's canonical TagHash: Blake3 over Encode(t), the same
// scheme change.Change.Hash uses over its own Hashed struct.
func Hash(t *Tag) ids.Hash {
	return ids.HashBytes(Encode(t))
}

// Decode parses the byte encoding Encode produces, reconstructing every
// field except TagHash (the caller recomputes and compares it, the way
// change-file reading verifies ContentsHash rather than trusting it).
func Decode(b []byte) (*Tag, error) {
	r := &tReader{buf: b}
	t := &Tag{}

	var err error
	if t.ChangeFileHash, err = r.optHash(); err != nil {
		return nil, err
	}
	state, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(t.State[:], state)
	if t.Channel, err = r.str(); err != nil {
		return nil, err
	}
	if t.ConsolidationTimestamp, err = r.i64(); err != nil {
		return nil, err
	}
	if t.PreviousConsolidation, err = r.optHash(); err != nil {
		return nil, err
	}
	if t.DependencyCountBefore, err = r.u64(); err != nil {
		return nil, err
	}
	if t.ConsolidatedChangeCount, err = r.u64(); err != nil {
		return nil, err
	}
	if t.ConsolidatesSince, err = r.optHash(); err != nil {
		return nil, err
	}
	if t.ConsolidatedChanges, err = r.hashes(); err != nil {
		return nil, err
	}
	if t.Version, err = r.optStr(); err != nil {
		return nil, err
	}
	if t.Message, err = r.optStr(); err != nil {
		return nil, err
	}
	if t.CreatedBy, err = r.optStr(); err != nil {
		return nil, err
	}
	if t.Metadata, err = r.stringMap(); err != nil {
		return nil, err
	}
	return t, nil
}

type tWriter struct{ buf *bytes.Buffer }

func (w *tWriter) u8(v uint8) { w.buf.WriteByte(v) }
func (w *tWriter) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}
func (w *tWriter) i64(v int64) { w.u64(uint64(v)) }
func (w *tWriter) fixed(b []byte) { w.buf.Write(b) }
func (w *tWriter) bytesField(b []byte) {
	w.u64(uint64(len(b)))
	w.buf.Write(b)
}
func (w *tWriter) str(s string) { w.bytesField([]byte(s)) }
func (w *tWriter) optStr(s string) {
	if s == "" {
		w.u8(0)
		return
	}
	w.u8(1)
	w.str(s)
}
func (w *tWriter) hash(h ids.Hash) { w.buf.Write(h[:]) }
func (w *tWriter) optHash(h ids.Hash) {
	if h.IsZero() {
		w.u8(0)
		return
	}
	w.u8(1)
	w.hash(h)
}
func (w *tWriter) hashes(hs []ids.Hash) {
	w.u64(uint64(len(hs)))
	for _, h := range hs {
		w.hash(h)
	}
}
func (w *tWriter) stringMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	w.u64(uint64(len(keys)))
	for _, k := range keys {
		w.str(k)
		w.str(m[k])
	}
}

type tReader struct {
	buf []byte
	pos int
}

func (r *tReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("tag: truncated encoding: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf))
	}
	return nil
}
func (r *tReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}
func (r *tReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}
func (r *tReader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}
func (r *tReader) fixed(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}
func (r *tReader) bytesField() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}
func (r *tReader) str() (string, error) {
	b, err := r.bytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
func (r *tReader) optStr() (string, error) {
	tag, err := r.u8()
	if err != nil || tag == 0 {
		return "", err
	}
	return r.str()
}
func (r *tReader) hash() (ids.Hash, error) {
	b, err := r.fixed(32)
	if err != nil {
		return ids.NoHash, err
	}
	var h ids.Hash
	copy(h[:], b)
	return h, nil
}
func (r *tReader) optHash() (ids.Hash, error) {
	tag, err := r.u8()
	if err != nil || tag == 0 {
		return ids.NoHash, err
	}
	return r.hash()
}
func (r *tReader) hashes() ([]ids.Hash, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]ids.Hash, n)
	for i := range out {
		if out[i], err = r.hash(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
func (r *tReader) stringMap() (map[string]string, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := r.str()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
