package wire

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/castingclouds/atomic-go/pkg/ids"
)

// CommandKind names one of the line-oriented SSH/pipe protocol's request
// verbs (spec §6.2): "id", "state", "changelist", "change"/"partial",
// "tag", "tagup", "apply", "archive", "identities".
type CommandKind int

const (
	CmdID CommandKind = iota
	CmdState
	CmdChangelist
	CmdChange
	CmdPartial
	CmdTag
	CmdTagup
	CmdApply
	CmdArchive
	CmdIdentities
)

func (k CommandKind) String() string {
	switch k {
	case CmdID:
		return "id"
	case CmdState:
		return "state"
	case CmdChangelist:
		return "changelist"
	case CmdChange:
		return "change"
	case CmdPartial:
		return "partial"
	case CmdTag:
		return "tag"
	case CmdTagup:
		return "tagup"
	case CmdApply:
		return "apply"
	case CmdArchive:
		return "archive"
	case CmdIdentities:
		return "identities"
	default:
		return "unknown"
	}
}

// Command is one parsed request line of the SSH/pipe protocol. Fields left
// at their zero value are simply absent for that command's grammar (e.g.
// Since is meaningless outside CmdIdentities).
type Command struct {
	Kind     CommandKind
	Channel  string
	From     uint64     // changelist's "N"
	Hash     ids.Hash   // change/tag/apply's <hash>/<merkle>
	Merkle   ids.Merkle // tagup's state merkle, archive's state
	ToChannel string    // tagup's optional to_channel
	Since    uint64     // identities' optional since (unix seconds)
	HasSince bool
}

// each command grammar as a regex over one already-trimmed protocol line.
// The leading verb is anchored; named groups carry the rest. This mirrors
// the source protocol's regex-per-verb grammar (spec §6.2: "see the
// grammar in the source protocol.rs via regexes").
var commandPatterns = []struct {
	kind CommandKind
	re   *regexp.Regexp
}{
	{CmdID, regexp.MustCompile(`^id\s+(?P<channel>\S+)$`)},
	{CmdState, regexp.MustCompile(`^state\s+(?P<channel>\S+)$`)},
	{CmdChangelist, regexp.MustCompile(`^changelist\s+(?P<channel>\S+)\s+(?P<from>\d+)$`)},
	{CmdChange, regexp.MustCompile(`^change\s+(?P<hash>[A-Za-z2-7]+)$`)},
	{CmdPartial, regexp.MustCompile(`^partial\s+(?P<hash>[A-Za-z2-7]+)$`)},
	{CmdTag, regexp.MustCompile(`^tag\s+(?P<hash>[A-Za-z2-7]+)$`)},
	{CmdTagup, regexp.MustCompile(`^tagup\s+(?P<merkle>[A-Za-z2-7]+)(?:\s+to_channel=(?P<to_channel>\S+))?$`)},
	{CmdApply, regexp.MustCompile(`^apply\s+(?P<channel>\S+)\s+(?P<hash>[A-Za-z2-7]+)$`)},
	{CmdArchive, regexp.MustCompile(`^archive\s+(?P<channel>\S+)(?:\s+(?P<merkle>[A-Za-z2-7]+))?$`)},
	{CmdIdentities, regexp.MustCompile(`^identities(?:\s+(?P<since>\d+))?$`)},
}

// ParseCommand parses one request line of the SSH/pipe protocol into a
// Command. Returns an error for a line matching none of the protocol's
// verbs.
func ParseCommand(line string) (Command, error) {
	for _, p := range commandPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		groups := namedGroups(p.re, m)
		cmd := Command{Kind: p.kind}

		if ch, ok := groups["channel"]; ok {
			cmd.Channel = ch
		}
		if from, ok := groups["from"]; ok && from != "" {
			n, err := strconv.ParseUint(from, 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("wire: malformed changelist position %q: %w", from, err)
			}
			cmd.From = n
		}
		if h, ok := groups["hash"]; ok && h != "" {
			hash, err := ids.ParseHash(h)
			if err != nil {
				return Command{}, err
			}
			cmd.Hash = hash
		}
		if mk, ok := groups["merkle"]; ok && mk != "" {
			merkle, err := ids.ParseMerkle(mk)
			if err != nil {
				return Command{}, err
			}
			cmd.Merkle = merkle
		}
		if tc, ok := groups["to_channel"]; ok {
			cmd.ToChannel = tc
		}
		if since, ok := groups["since"]; ok && since != "" {
			n, err := strconv.ParseUint(since, 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("wire: malformed identities since %q: %w", since, err)
			}
			cmd.Since = n
			cmd.HasSince = true
		}
		return cmd, nil
	}
	return Command{}, fmt.Errorf("wire: unrecognized protocol line %q", line)
}

// FormatCommand renders cmd back into the request line ParseCommand
// accepts, primarily for test fixtures and client-side construction.
func FormatCommand(cmd Command) string {
	switch cmd.Kind {
	case CmdID:
		return fmt.Sprintf("id %s", cmd.Channel)
	case CmdState:
		return fmt.Sprintf("state %s", cmd.Channel)
	case CmdChangelist:
		return fmt.Sprintf("changelist %s %d", cmd.Channel, cmd.From)
	case CmdChange:
		return fmt.Sprintf("change %s", cmd.Hash)
	case CmdPartial:
		return fmt.Sprintf("partial %s", cmd.Hash)
	case CmdTag:
		return fmt.Sprintf("tag %s", cmd.Hash)
	case CmdTagup:
		if cmd.ToChannel != "" {
			return fmt.Sprintf("tagup %s to_channel=%s", cmd.Merkle, cmd.ToChannel)
		}
		return fmt.Sprintf("tagup %s", cmd.Merkle)
	case CmdApply:
		return fmt.Sprintf("apply %s %s", cmd.Channel, cmd.Hash)
	case CmdArchive:
		if !cmd.Merkle.IsZero() {
			return fmt.Sprintf("archive %s %s", cmd.Channel, cmd.Merkle)
		}
		return fmt.Sprintf("archive %s", cmd.Channel)
	case CmdIdentities:
		if cmd.HasSince {
			return fmt.Sprintf("identities %d", cmd.Since)
		}
		return "identities"
	default:
		return ""
	}
}

// namedGroups maps re's named capture groups to the corresponding matches
// in m, skipping unnamed groups.
func namedGroups(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	return out
}

// StreamTerminator is the empty line that ends a newline-terminated
// streaming response (spec §6.2).
const StreamTerminator = ""
