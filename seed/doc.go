// Package seed turns BIP-39 seed phrases into master keys and produces the
// confirmation quiz shown after a new phrase is generated.
//
// A Source is stateful: GenerateSeedPhrase and RestoreFromSeedPhrase replace
// the phrase it holds, and GetMasterKey returns the key of the phrase held
// last. The master key is the 64-byte BIP-39 seed of the phrase with an empty
// passphrase, so the same words always reconstruct the same key on any device.
package seed
