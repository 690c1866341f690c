package interfaces

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MasterKey is the root secret every PGP keypair is derived from.
type MasterKey []byte

// Zero overwrites the key material in place.
func (k MasterKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Clone returns an independent copy of the key.
func (k MasterKey) Clone() MasterKey {
	if k == nil {
		return nil
	}
	return append(MasterKey(nil), k...)
}

// KeyRole marks what a derived keypair is used for. Account keys carry RoleAccount.
type KeyRole string

const (
	RoleAccount KeyRole = ""
	RoleBackup  KeyRole = "backup"
)

// SpecialRoles lists every reserved role in a fixed order.
var SpecialRoles = []KeyRole{RoleBackup}

// IsSpecial reports whether the role is a reserved, non-account role.
func (r KeyRole) IsSpecial() bool {
	return slices.Contains(SpecialRoles, r)
}

func (r KeyRole) String() string {
	if r == RoleAccount {
		return "account"
	}
	return string(r)
}

// SpecialIdentities maps each reserved role to its identity string.
type SpecialIdentities map[KeyRole]string

// Identity returns the identity reserved for role.
func (s SpecialIdentities) Identity(role KeyRole) (string, bool) {
	id, ok := s[role]
	return id, ok
}

// IsReserved reports whether identity is one of the reserved identities.
func (s SpecialIdentities) IsReserved(identity string) bool {
	identity = CanonicalIdentity(identity)
	for _, id := range s {
		if CanonicalIdentity(id) == identity {
			return true
		}
	}
	return false
}

// KeyDerivationConfig is installed once and never changes afterwards.
type KeyDerivationConfig struct {
	SeedPhraseLength  int               `yaml:"seed_phrase_length"`
	SpecialIdentities SpecialIdentities `yaml:"special_identities"`
}

// Validate checks the seed length and that every special role has a distinct identity.
func (c KeyDerivationConfig) Validate() error {
	switch c.SeedPhraseLength {
	case 12, 15, 18, 21, 24:
	default:
		return fmt.Errorf("%w: seed phrase length %d", ErrMalformedInput, c.SeedPhraseLength)
	}

	seen := make(map[string]KeyRole, len(c.SpecialIdentities))
	for _, role := range SpecialRoles {
		id, ok := c.SpecialIdentities[role]
		if !ok || strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: missing identity for role %s", ErrMalformedInput, role)
		}
		canonical := CanonicalIdentity(id)
		if other, dup := seen[canonical]; dup {
			return fmt.Errorf("%w: roles %s and %s share identity %s", ErrMalformedInput, other, role, id)
		}
		seen[canonical] = role
	}
	for role := range c.SpecialIdentities {
		if !role.IsSpecial() {
			return fmt.Errorf("%w: unknown key role %q", ErrMalformedInput, string(role))
		}
	}
	return nil
}

// Account is a mail account owning one derived keypair.
type Account struct {
	Address     string    `json:"address"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity returns the canonical identity string of the account.
func (a Account) Identity() string {
	return CanonicalIdentity(a.Address)
}

// CanonicalIdentity normalizes an identity string for comparison and derivation.
func CanonicalIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// PublicKeyInfo describes one key known to the PGP engine.
type PublicKeyInfo struct {
	Identity    string    `json:"identity"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	KeyID       string    `json:"key_id"`
	Role        KeyRole   `json:"role,omitempty"`
	HasSecret   bool      `json:"has_secret"`
	CreatedAt   time.Time `json:"created_at"`
}
