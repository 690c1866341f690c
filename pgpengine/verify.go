package pgpengine

import (
	"bytes"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// Verifier checks detached signatures against a single submitted public key.
// It needs no key context and is what the backup server uses.
type Verifier struct{}

// VerifySignature reports whether signature is a valid detached signature over
// data made by the one key in publicKey, and that key's primary identity is
// expectedIdentity. Keys and signatures may be armored or binary.
func (Verifier) VerifySignature(publicKey, signature, data []byte, expectedIdentity string) bool {
	keyring, err := readKeyRing(publicKey, isArmored(publicKey))
	if err != nil || len(keyring) != 1 {
		return false
	}

	var signer *openpgp.Entity
	if isArmored(signature) {
		signer, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil || signer == nil {
		return false
	}

	expected := interfaces.CanonicalIdentity(expectedIdentity)
	return expected != "" && entityEmail(signer) == expected
}

func isArmored(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN "))
}
