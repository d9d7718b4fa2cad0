package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Identity is one entry of the identities/ directory (spec §6.3, §6.1 "GET
// …/code?identities=[since]"). Key management and signing proper are spec
// §1's explicit Non-goal; Identity only carries the public attribution
// record a change's Header.Authors references by KeyID — it never holds a
// private key.
type Identity struct {
	KeyID      string    `json:"key_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	PublicKey  string    `json:"public_key,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

func (r *Repository) identitiesDir() string {
	return filepath.Join(atomicDir(r.Dir), identitiesDirName)
}

func (r *Repository) identityPath(keyID string) string {
	return filepath.Join(r.identitiesDir(), keyID+".json")
}

// PutIdentity writes id's JSON blob under its KeyID, stamping ModifiedAt
// to now if the caller left it zero.
func (r *Repository) PutIdentity(id Identity) error {
	if id.KeyID == "" {
		return fmt.Errorf("repo: identity must have a non-empty KeyID")
	}
	if id.ModifiedAt.IsZero() {
		id.ModifiedAt = time.Now().UTC()
	}
	b, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("repo: encoding identity %s: %w", id.KeyID, err)
	}
	return writeAtomic(r.identityPath(id.KeyID), b)
}

// GetIdentity reads the identity stored under keyID.
func (r *Repository) GetIdentity(keyID string) (Identity, error) {
	b, err := os.ReadFile(r.identityPath(keyID))
	if err != nil {
		return Identity{}, fmt.Errorf("repo: no identity for %s: %w", keyID, err)
	}
	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return Identity{}, fmt.Errorf("repo: decoding identity %s: %w", keyID, err)
	}
	return id, nil
}

// IdentitiesSince lists every identity modified at or after since, ordered
// by KeyID — the engine-side half of "GET …/code?identities=[since]" (spec
// §6.1): the transport wrapper decides how to frame the response, this
// just answers the query.
func (r *Repository) IdentitiesSince(since time.Time) ([]Identity, error) {
	entries, err := os.ReadDir(r.identitiesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo: listing identities: %w", err)
	}
	var out []Identity
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keyID := strings.TrimSuffix(e.Name(), ".json")
		id, err := r.GetIdentity(keyID)
		if err != nil {
			return nil, err
		}
		if !id.ModifiedAt.Before(since) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyID < out[j].KeyID })
	return out, nil
}
