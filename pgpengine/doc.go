// Package pgpengine is the OpenPGP engine of the key system, built on
// ProtonMail's go-crypto.
//
// Keypairs are derived deterministically: an HKDF stream keyed by the master
// key, salted with the key tag and bound to the canonical identity feeds the
// OpenPGP key generator, and the creation time is pinned. The same master key,
// identity and tag therefore always produce the same Ed25519/X25519 keypair
// and fingerprint.
//
// Every key carries the role it was derived for, so reserved keys can be
// filtered from user listings without inspecting identity strings. Key
// records are persisted through an interfaces.KeyContextStore, normally the
// encrypted record store.
package pgpengine
