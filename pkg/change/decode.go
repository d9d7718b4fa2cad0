package change

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
)

// Decode parses the canonical encoding produced by Encode back into a
// Hashed struct. Used by ReadFile and by tests asserting the round trip;
// the apply engine otherwise only ever needs the Hash, not a decode.
func Decode(b []byte) (Hashed, error) {
	r := &cReader{buf: b}
	var h Hashed

	var err error
	if h.Version, err = r.u64(); err != nil {
		return h, err
	}
	if h.Version != CurrentVersion {
		return h, &VersionMismatchError{Got: h.Version}
	}
	if h.Header, err = r.header(); err != nil {
		return h, err
	}
	if h.Dependencies, err = r.hashes(); err != nil {
		return h, err
	}
	if h.ExtraKnown, err = r.hashes(); err != nil {
		return h, err
	}
	if h.Metadata, err = r.bytes(); err != nil {
		return h, err
	}
	n, err := r.u64()
	if err != nil {
		return h, err
	}
	h.Changes = make([]Hunk, n)
	for i := range h.Changes {
		if h.Changes[i], err = r.hunk(); err != nil {
			return h, err
		}
	}
	if h.ContentsHash, err = r.hash(); err != nil {
		return h, err
	}
	if h.Tag, err = r.tag(); err != nil {
		return h, err
	}
	if len(r.buf) != 0 {
		return h, fmt.Errorf("change: %d trailing bytes after decode", len(r.buf))
	}
	return h, nil
}

type cReader struct{ buf []byte }

func (r *cReader) take(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, fmt.Errorf("change: truncated encoding, need %d bytes, have %d", n, len(r.buf))
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *cReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *cReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *cReader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *cReader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

func (r *cReader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *cReader) optStr() (string, error) {
	present, err := r.u8()
	if err != nil || present == 0 {
		return "", err
	}
	return r.str()
}

func (r *cReader) hash() (ids.Hash, error) {
	b, err := r.take(32)
	if err != nil {
		return ids.NoHash, err
	}
	var h ids.Hash
	copy(h[:], b)
	return h, nil
}

func (r *cReader) optHash() (ids.Hash, error) {
	present, err := r.u8()
	if err != nil || present == 0 {
		return ids.NoHash, err
	}
	return r.hash()
}

func (r *cReader) hashes() ([]ids.Hash, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Encode writes a nil and an empty list identically; decode both
		// as nil so Decode(Encode(h)) reproduces an unset list exactly.
		return nil, nil
	}
	out := make([]ids.Hash, n)
	for i := range out {
		if out[i], err = r.hash(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *cReader) header() (Header, error) {
	var h Header
	var err error
	if h.Message, err = r.str(); err != nil {
		return h, err
	}
	if h.Description, err = r.optStr(); err != nil {
		return h, err
	}
	nanos, err := r.i64()
	if err != nil {
		return h, err
	}
	h.Timestamp = time.Unix(0, nanos).UTC()
	n, err := r.u64()
	if err != nil {
		return h, err
	}
	h.Authors = make([]Author, n)
	for i := range h.Authors {
		if h.Authors[i], err = r.author(); err != nil {
			return h, err
		}
	}
	return h, nil
}

func (r *cReader) author() (Author, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	a := make(Author, n)
	for i := uint64(0); i < n; i++ {
		k, err := r.str()
		if err != nil {
			return nil, err
		}
		v, err := r.str()
		if err != nil {
			return nil, err
		}
		a[k] = v
	}
	return a, nil
}

func (r *cReader) stringMap() (map[string]string, error) {
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

func (r *cReader) tag() (*TagMetadata, error) {
	present, err := r.u8()
	if err != nil || present == 0 {
		return nil, err
	}
	t := &TagMetadata{}
	if t.Version, err = r.optStr(); err != nil {
		return nil, err
	}
	if t.Channel, err = r.str(); err != nil {
		return nil, err
	}
	if t.ConsolidatedChangeCount, err = r.u64(); err != nil {
		return nil, err
	}
	if t.DependencyCountBefore, err = r.u64(); err != nil {
		return nil, err
	}
	if t.ConsolidatedChanges, err = r.hashes(); err != nil {
		return nil, err
	}
	if t.PreviousConsolidation, err = r.optHash(); err != nil {
		return nil, err
	}
	if t.ConsolidatesSince, err = r.optHash(); err != nil {
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

func (r *cReader) hunk() (Hunk, error) {
	var h Hunk
	k, err := r.u8()
	if err != nil {
		return h, err
	}
	h.Kind = HunkKind(k)
	n, err := r.u64()
	if err != nil {
		return h, err
	}
	h.Atoms = make([]Atom, n)
	for i := range h.Atoms {
		if h.Atoms[i], err = r.atom(); err != nil {
			return h, err
		}
	}
	return h, nil
}

func (r *cReader) atom() (Atom, error) {
	var a Atom
	k, err := r.u8()
	if err != nil {
		return a, err
	}
	a.Kind = AtomKind(k)
	switch a.Kind {
	case AtomNewVertex:
		a.Vertex, err = r.newVertex()
	case AtomEdgeMap:
		a.EdgeMap, err = r.edgeMap()
	default:
		return a, fmt.Errorf("change: unknown atom kind %d", k)
	}
	return a, err
}

func (r *cReader) hashPosition() (HashPosition, error) {
	var p HashPosition
	var err error
	if p.Change, err = r.hash(); err != nil {
		return p, err
	}
	pos, err := r.u64()
	p.Pos = ids.ChangePosition(pos)
	return p, err
}

func (r *cReader) hashPositions() ([]HashPosition, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make([]HashPosition, n)
	for i := range out {
		if out[i], err = r.hashPosition(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *cReader) newVertex() (NewVertex, error) {
	var v NewVertex
	var err error
	if v.UpContext, err = r.hashPositions(); err != nil {
		return v, err
	}
	if v.DownContext, err = r.hashPositions(); err != nil {
		return v, err
	}
	flag, err := r.u8()
	if err != nil {
		return v, err
	}
	v.Flag = graph.EdgeFlags(flag)
	start, err := r.u64()
	if err != nil {
		return v, err
	}
	v.Start = ids.ChangePosition(start)
	end, err := r.u64()
	if err != nil {
		return v, err
	}
	v.End = ids.ChangePosition(end)
	v.Inode, err = r.hashPosition()
	return v, err
}

func (r *cReader) hashVertex() (HashVertex, error) {
	var v HashVertex
	var err error
	if v.Change, err = r.hash(); err != nil {
		return v, err
	}
	start, err := r.u64()
	if err != nil {
		return v, err
	}
	v.Start = ids.ChangePosition(start)
	end, err := r.u64()
	if err != nil {
		return v, err
	}
	v.End = ids.ChangePosition(end)
	return v, nil
}

func (r *cReader) edgeMap() (EdgeMap, error) {
	var e EdgeMap
	n, err := r.u64()
	if err != nil {
		return e, err
	}
	e.Edges = make([]NewEdge, n)
	for i := range e.Edges {
		if e.Edges[i], err = r.newEdge(); err != nil {
			return e, err
		}
	}
	e.Inode, err = r.hashPosition()
	return e, err
}

func (r *cReader) newEdge() (NewEdge, error) {
	var e NewEdge
	prev, err := r.u8()
	if err != nil {
		return e, err
	}
	e.Previous = graph.EdgeFlags(prev)
	flag, err := r.u8()
	if err != nil {
		return e, err
	}
	e.Flag = graph.EdgeFlags(flag)
	if e.From, err = r.hashPosition(); err != nil {
		return e, err
	}
	if e.To, err = r.hashVertex(); err != nil {
		return e, err
	}
	e.IntroducedBy, err = r.hash()
	return e, err
}
