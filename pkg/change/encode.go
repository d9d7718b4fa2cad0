package change

import (
	"bytes"
	"encoding/binary"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// Encode produces the canonical, deterministic byte encoding of a Hashed
// struct — the "bincode-encode the hashed struct" step of spec §4.3's
// hashing recipe. Every field is written in declaration order with
// explicit length prefixes, so the encoding is a pure function of the
// struct's values (no map iteration, no platform-dependent float/int
// sizes), which a content hash requires.
func Encode(h Hashed) []byte {
	var b bytes.Buffer
	w := &cWriter{buf: &b}

	w.u64(h.Version)
	w.header(h.Header)
	w.hashes(h.Dependencies)
	w.hashes(h.ExtraKnown)
	w.bytes(h.Metadata)
	w.u64(uint64(len(h.Changes)))
	for _, hunk := range h.Changes {
		w.hunk(hunk)
	}
	w.hash(h.ContentsHash)
	w.tag(h.Tag)

	return b.Bytes()
}

type cWriter struct {
	buf *bytes.Buffer
}

func (w *cWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w *cWriter) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *cWriter) i64(v int64) { w.u64(uint64(v)) }

func (w *cWriter) bytes(b []byte) {
	w.u64(uint64(len(b)))
	w.buf.Write(b)
}

func (w *cWriter) str(s string) { w.bytes([]byte(s)) }

func (w *cWriter) optStr(s string) {
	if s == "" {
		w.u8(0)
		return
	}
	w.u8(1)
	w.str(s)
}

func (w *cWriter) hash(h ids.Hash) { w.buf.Write(h[:]) }

func (w *cWriter) optHash(h ids.Hash) {
	if h.IsZero() {
		w.u8(0)
		return
	}
	w.u8(1)
	w.hash(h)
}

func (w *cWriter) hashes(hs []ids.Hash) {
	w.u64(uint64(len(hs)))
	for _, h := range hs {
		w.hash(h)
	}
}

func (w *cWriter) header(h Header) {
	w.str(h.Message)
	w.optStr(h.Description)
	w.i64(h.Timestamp.UTC().UnixNano())
	w.u64(uint64(len(h.Authors)))
	for _, a := range h.Authors {
		w.author(a)
	}
}

func (w *cWriter) author(a Author) {
	keys := sortedKeys(a)
	w.u64(uint64(len(keys)))
	for _, k := range keys {
		w.str(k)
		w.str(a[k])
	}
}

func (w *cWriter) stringMap(m map[string]string) {
	keys := sortedKeys(m)
	w.u64(uint64(len(keys)))
	for _, k := range keys {
		w.str(k)
		w.str(m[k])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Insertion sort: author/metadata maps are tiny (a handful of keys),
	// so this avoids pulling in sort.Strings for a few comparisons.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func (w *cWriter) tag(t *TagMetadata) {
	if t == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.optStr(t.Version)
	w.str(t.Channel)
	w.u64(t.ConsolidatedChangeCount)
	w.u64(t.DependencyCountBefore)
	w.hashes(t.ConsolidatedChanges)
	w.optHash(t.PreviousConsolidation)
	w.optHash(t.ConsolidatesSince)
	w.optStr(t.CreatedBy)
	w.stringMap(t.Metadata)
}

func (w *cWriter) hunk(h Hunk) {
	w.u8(uint8(h.Kind))
	w.u64(uint64(len(h.Atoms)))
	for _, a := range h.Atoms {
		w.atom(a)
	}
}

func (w *cWriter) atom(a Atom) {
	w.u8(uint8(a.Kind))
	switch a.Kind {
	case AtomNewVertex:
		w.newVertex(a.Vertex)
	case AtomEdgeMap:
		w.edgeMap(a.EdgeMap)
	}
}

func (w *cWriter) hashPosition(p HashPosition) {
	w.hash(p.Change)
	w.u64(uint64(p.Pos))
}

func (w *cWriter) hashPositions(ps []HashPosition) {
	w.u64(uint64(len(ps)))
	for _, p := range ps {
		w.hashPosition(p)
	}
}

func (w *cWriter) newVertex(v NewVertex) {
	w.hashPositions(v.UpContext)
	w.hashPositions(v.DownContext)
	w.u8(uint8(v.Flag))
	w.u64(uint64(v.Start))
	w.u64(uint64(v.End))
	w.hashPosition(v.Inode)
}

func (w *cWriter) hashVertex(v HashVertex) {
	w.hash(v.Change)
	w.u64(uint64(v.Start))
	w.u64(uint64(v.End))
}

func (w *cWriter) edgeMap(e EdgeMap) {
	w.u64(uint64(len(e.Edges)))
	for _, edge := range e.Edges {
		w.newEdge(edge)
	}
	w.hashPosition(e.Inode)
}

func (w *cWriter) newEdge(e NewEdge) {
	w.u8(uint8(e.Previous))
	w.u8(uint8(e.Flag))
	w.hashPosition(e.From)
	w.hashVertex(e.To)
	w.hash(e.IntroducedBy)
}
