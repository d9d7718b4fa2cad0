// Package wire defines the byte-level contracts of spec §6: the HTTP query
// protocol (§6.1) and the line-oriented SSH/pipe protocol (§6.2) a
// transport adapter speaks to reach this engine. Neither an HTTP server
// nor an SSH server lives here — per spec §1, "the CLI surface... the
// HTTP/SSH remote transports and the axum/tokio server hosting them" are
// external collaborators. This package only encodes and decodes the wire
// shapes so a transport adapter (and pkg/remote, on the receiving end) can
// agree on bytes without either one owning a socket.
//
// Grounded directly in spec §6; there is no single teacher file this
// mirrors line-for-line, since the teacher's own wire layer (pkg/bolt, the
// Neo4j Bolt protocol) belongs to the Cypher/graph-database product
// surface this port does not carry (see DESIGN.md's deleted-packages
// list). The shape of this package — small request/response structs, one
// Format/Parse pair per wire shape, no I/O — follows the teacher's
// pkg/storage/badger_serialization.go texture: a dedicated encode/decode
// pair per concern, kept free of any transaction or socket type.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/castingclouds/atomic-go/pkg/graph"
	"github.com/castingclouds/atomic-go/pkg/ids"
	"github.com/castingclouds/atomic-go/pkg/remote"
)

// RepoPath holds the path segments of the single endpoint spec §6.1 names:
// "…/{tenant}/{portfolio}/{project}/code[/.atomic]".
type RepoPath struct {
	Tenant    string
	Portfolio string
	Project   string
	Atomic    bool // true if the path ends in "/.atomic"
}

// String renders p back into its path form.
func (p RepoPath) String() string {
	s := fmt.Sprintf("/%s/%s/%s/code", p.Tenant, p.Portfolio, p.Project)
	if p.Atomic {
		s += "/.atomic"
	}
	return s
}

// FormatID renders a channel's RemoteId as the ASCII-decimal response body
// of "GET …/code?channel=C&id=" (spec §6.1).
func FormatID(id ids.RemoteId) string {
	return strconv.FormatUint(uint64(id), 10) + "\n"
}

// ParseID is FormatID's inverse.
func ParseID(body string) (ids.RemoteId, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(body), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: parsing id response %q: %w", body, err)
	}
	return ids.RemoteId(n), nil
}

// State is the decoded response body of "GET …/code?channel=C&state="
// (spec §6.1): "<position> <merkle> <tag-merkle>", or the sentinel empty
// state if the channel has never been touched.
type State struct {
	Position uint64
	Merkle   ids.Merkle
	TagHash  ids.Hash // the most recent tag's hash, NoHash if none
	Empty    bool
}

// FormatState renders s as the line spec §6.1 describes.
func FormatState(s State) string {
	if s.Empty {
		return "-\n"
	}
	tag := "-"
	if !s.TagHash.IsZero() {
		tag = s.TagHash.String()
	}
	return fmt.Sprintf("%d %s %s\n", s.Position, s.Merkle, tag)
}

// ParseState is FormatState's inverse.
func ParseState(line string) (State, error) {
	line = strings.TrimSpace(line)
	if line == "-" {
		return State{Empty: true}, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return State{}, fmt.Errorf("wire: malformed state line %q", line)
	}
	pos, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("wire: malformed state position %q: %w", fields[0], err)
	}
	merkle, err := ids.ParseMerkle(fields[1])
	if err != nil {
		return State{}, err
	}
	var tagHash ids.Hash
	if fields[2] != "-" {
		tagHash, err = ids.ParseHash(fields[2])
		if err != nil {
			return State{}, err
		}
	}
	return State{Position: pos, Merkle: merkle, TagHash: tagHash}, nil
}

// ChangelistLine is one line of a "GET …/code?channel=C&changelist=N"
// stream: "<position>.<hash-base32>.<merkle-base32>[.]", where a trailing
// "." marks a tagged entry (spec §6.1).
type ChangelistLine struct {
	Position uint64
	Node     remote.Node
	Tagged   bool
}

// FormatChangelistLine renders one line of the changelist stream.
func FormatChangelistLine(l ChangelistLine) string {
	s := fmt.Sprintf("%d.%s.%s", l.Position, l.Node.Hash, l.Node.State)
	if l.Tagged {
		s += "."
	}
	return s
}

// ParseChangelistLine is FormatChangelistLine's inverse. nt supplies the
// node type (Change vs Tag), which the line itself does not encode — the
// SSH grammar's sibling "change"/"tag" commands disambiguate by which
// command was issued, not by the line's own bytes.
func ParseChangelistLine(line string, nt graph.NodeType) (ChangelistLine, error) {
	tagged := strings.HasSuffix(line, ".")
	line = strings.TrimSuffix(line, ".")
	parts := strings.SplitN(line, ".", 3)
	if len(parts) != 3 {
		return ChangelistLine{}, fmt.Errorf("wire: malformed changelist line %q", line)
	}
	pos, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return ChangelistLine{}, fmt.Errorf("wire: malformed changelist position %q: %w", parts[0], err)
	}
	hash, err := ids.ParseHash(parts[1])
	if err != nil {
		return ChangelistLine{}, err
	}
	merkle, err := ids.ParseMerkle(parts[2])
	if err != nil {
		return ChangelistLine{}, err
	}
	return ChangelistLine{
		Position: pos,
		Node:     remote.Node{Hash: hash, NodeType: nt, State: merkle},
		Tagged:   tagged,
	}, nil
}

// FormatTagFrame renders the length-prefixed binary form of "GET
// …/code?tag=<merkle>": a big-endian u64 length followed by the short-form
// tag bytes (spec §6.1).
func FormatTagFrame(short []byte) []byte {
	out := make([]byte, 8+len(short))
	putU64BE(out, uint64(len(short)))
	copy(out[8:], short)
	return out
}

// ParseTagFrame is FormatTagFrame's inverse.
func ParseTagFrame(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("wire: tag frame shorter than its length prefix")
	}
	n := getU64BE(b)
	if uint64(len(b)) != 8+n {
		return nil, fmt.Errorf("wire: tag frame declares %d bytes, got %d", n, len(b)-8)
	}
	return b[8:], nil
}

func putU64BE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getU64BE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// ContentType is the MIME type every binary response of spec §6.1 uses.
const ContentType = "application/octet-stream"
