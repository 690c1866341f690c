// Package recordstore implements the password-gated encrypted record store on
// top of bbolt.
//
// The database holds a random 32-byte data key wrapped with a key derived from
// the user's password (argon2id, XChaCha20-Poly1305). Every record, the master
// key, the mail accounts and the PGP engine's key records, is sealed with the
// data key, bound to its bucket and key. Changing the password only re-wraps
// the data key.
package recordstore
