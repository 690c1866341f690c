// Package interfaces defines the contracts and shared types of the seed-derived
// PGP key system, separating interface definitions from implementations.
//
// # Key Management Interfaces
//
// PGPEngine: holds and derives OpenPGP keypairs, imports and exports key
// material and verifies detached signatures.
//
// MasterKeySource: produces a fresh seed phrase or reconstructs a master key
// from a caller supplied one.
//
// RecordStore: the password-gated encrypted store that persists the master
// key, the mail accounts and the engine's key context.
//
// # Storage Interfaces
//
// BlobStore: named object storage for backup bundles across multiple backend
// types (file, S3, IPFS, Vault).
//
// ContentIDMap: fingerprint keyed mapping to the content identifier of an
// accepted backup.
//
// # Error Types
//
// Errors are grouped by how a caller is expected to react: not-initialized
// errors mean setup must be completed, ErrBadCredential means the password
// was wrong, malformed-input errors are rejected before any I/O and storage
// errors come from the backends unchanged.
package interfaces
