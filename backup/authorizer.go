package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// Authorizer decides whether an uploaded bundle may be stored.
type Authorizer struct {
	log            *slog.Logger
	store          interfaces.BlobStore
	verifier       interfaces.SignatureVerifier
	backupIdentity string
}

// NewAuthorizer creates an authorizer accepting signatures by backupIdentity only.
func NewAuthorizer(store interfaces.BlobStore, verifier interfaces.SignatureVerifier, backupIdentity string, log *slog.Logger) *Authorizer {
	return &Authorizer{
		log:            log,
		store:          store,
		verifier:       verifier,
		backupIdentity: backupIdentity,
	}
}

// IsUploadAllowed reports whether files form a bundle whose signature
// verifies against the submitted public key and, when the fingerprint already
// has a registered key, against that key too. Verification failures are a
// false result; only blob store errors are returned as errors.
func (a *Authorizer) IsUploadAllowed(ctx context.Context, files []File) (bool, error) {
	bundle, ok := ResolveBundle(files)
	if !ok {
		a.log.Info("upload rejected: malformed bundle", "files", len(files))
		return false, nil
	}
	return a.authorize(ctx, bundle)
}

func (a *Authorizer) authorize(ctx context.Context, bundle *Bundle) (bool, error) {
	log := a.log.With("fingerprint", bundle.Fingerprint)
	pubName := PublicKeyName(bundle.Fingerprint)

	registered, err := a.store.Exists(ctx, pubName)
	if err != nil {
		return false, fmt.Errorf("could not look up registered key: %w", err)
	}

	if registered {
		registeredKey, err := a.store.Download(ctx, pubName)
		if err != nil {
			return false, fmt.Errorf("could not fetch registered key: %w", err)
		}
		if !a.verifier.VerifySignature(registeredKey, bundle.Signature, bundle.Data, a.backupIdentity) {
			log.Warn("upload rejected: signature does not verify against registered key")
			return false, nil
		}
	}

	if !a.verifier.VerifySignature(bundle.PublicKey, bundle.Signature, bundle.Data, a.backupIdentity) {
		log.Warn("upload rejected: signature does not verify against submitted key")
		return false, nil
	}

	log.Info("upload authorized", "registered", registered)
	return true, nil
}
