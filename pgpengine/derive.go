package pgpengine

import (
	"crypto"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/ruteri/pgp-seed-backup/interfaces"
	"golang.org/x/crypto/hkdf"
)

const derivationInfoPrefix = "pgp-seed-backup/openpgp/v1|"

// derivationEpoch is the creation time of every derived key. The fingerprint
// covers it, so it must never change.
var derivationEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func derivationReader(masterKey interfaces.MasterKey, identity, tag string) io.Reader {
	return hkdf.New(sha256.New, masterKey, []byte(tag), []byte(derivationInfoPrefix+identity))
}

// DeriveEntity derives the keypair of identity from masterKey and tag.
func DeriveEntity(masterKey interfaces.MasterKey, identity, tag string) (*openpgp.Entity, error) {
	if len(masterKey) == 0 {
		return nil, interfaces.ErrMasterKeyNotInitialized
	}
	identity = interfaces.CanonicalIdentity(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", interfaces.ErrMalformedInput)
	}

	cfg := &packet.Config{
		Rand:        derivationReader(masterKey, identity, tag),
		Time:        func() time.Time { return derivationEpoch },
		DefaultHash: crypto.SHA256,
		Algorithm:   packet.PubKeyAlgoEdDSA,
		Curve:       packet.Curve25519,
	}

	entity, err := openpgp.NewEntity(displayName(identity), "", identity, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not derive key for %s: %w", identity, err)
	}
	return entity, nil
}

func displayName(identity string) string {
	if local, _, ok := strings.Cut(identity, "@"); ok && local != "" {
		return local
	}
	return identity
}
