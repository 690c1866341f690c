package interfaces

import "context"

// SignatureVerifier checks detached signatures over backup data.
type SignatureVerifier interface {
	// VerifySignature reports whether signature is a valid detached signature
	// over data made by a key in publicKey whose identity is expectedIdentity.
	VerifySignature(publicKey, signature, data []byte, expectedIdentity string) bool
}

// PGPEngine holds and derives OpenPGP keypairs.
type PGPEngine interface {
	SignatureVerifier

	// Load reads the persisted key context. The backing store must be open.
	Load(ctx context.Context) error

	// Unload drops every key held in memory.
	Unload()

	HasSecretKey(identity string) bool

	// DeriveKeypair deterministically derives the keypair of identity from
	// masterKey and tag and stores it marked with role.
	DeriveKeypair(ctx context.Context, masterKey MasterKey, identity, tag string, role KeyRole) error

	ListPublicKeys() []PublicKeyInfo

	ImportPublicKeys(data []byte, armored bool) error
	ImportSecretKeys(data []byte, armored bool) error

	// ExportPublicKeyRing returns the armored public key of the key with the
	// given key ID or fingerprint.
	ExportPublicKeyRing(keyID string) ([]byte, error)

	// Sign returns an armored detached signature over data by identity's secret key.
	Sign(identity string, data []byte) ([]byte, error)
}

// MasterKeySource produces and reconstructs master keys from seed phrases.
type MasterKeySource interface {
	GenerateSeedPhrase(ctx context.Context) ([]string, error)
	RestoreFromSeedPhrase(words []string) error
	GetMasterKey() (MasterKey, error)
}
