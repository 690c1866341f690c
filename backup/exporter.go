package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// Signer is the part of the PGP engine the exporter needs.
type Signer interface {
	ListPublicKeys() []interfaces.PublicKeyInfo
	ExportPublicKeyRing(keyID string) ([]byte, error)
	Sign(identity string, data []byte) ([]byte, error)
}

// Exporter builds signed backup bundles with the bound backup identity.
type Exporter struct {
	log    *slog.Logger
	signer Signer

	mu       sync.RWMutex
	identity string
}

// NewExporter signs bundles through signer once a signing identity is bound.
func NewExporter(signer Signer, log *slog.Logger) *Exporter {
	return &Exporter{log: log, signer: signer}
}

// BindSigningIdentity sets the identity whose key signs exported bundles.
func (e *Exporter) BindSigningIdentity(identity string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identity = interfaces.CanonicalIdentity(identity)
}

// SigningKey returns the key that signs bundles.
func (e *Exporter) SigningKey() (interfaces.PublicKeyInfo, error) {
	e.mu.RLock()
	identity := e.identity
	e.mu.RUnlock()

	if identity == "" {
		return interfaces.PublicKeyInfo{}, interfaces.ErrConfigNotInitialized
	}
	for _, k := range e.signer.ListPublicKeys() {
		if k.HasSecret && k.Identity == identity {
			return k, nil
		}
	}
	return interfaces.PublicKeyInfo{}, fmt.Errorf("%w: no backup signing key", interfaces.ErrKeyNotFound)
}

// Export signs data and returns the bundle named after the signing key's fingerprint.
func (e *Exporter) Export(ctx context.Context, data []byte) (*Bundle, error) {
	key, err := e.SigningKey()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pub, err := e.signer.ExportPublicKeyRing(key.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("could not export backup key: %w", err)
	}
	sig, err := e.signer.Sign(key.Identity, data)
	if err != nil {
		return nil, fmt.Errorf("could not sign backup: %w", err)
	}

	e.log.Info("exported backup bundle", "fingerprint", key.Fingerprint, "size", len(data))
	return &Bundle{
		Fingerprint: key.Fingerprint,
		PublicKey:   pub,
		Signature:   sig,
		Data:        data,
	}, nil
}
