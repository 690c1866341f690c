package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// BlobCIDMap keeps content identifiers as {fingerprint}.cid objects in a blob store.
type BlobCIDMap struct {
	store interfaces.BlobStore
}

// NewBlobCIDMap stores content identifiers next to the bundles in store.
func NewBlobCIDMap(store interfaces.BlobStore) *BlobCIDMap {
	return &BlobCIDMap{store: store}
}

// GetFileCid returns interfaces.ErrContentNotFound when fingerprint has no stored identifier.
func (m *BlobCIDMap) GetFileCid(ctx context.Context, fingerprint string) (interfaces.ContentID, error) {
	if !ValidFingerprint(fingerprint) {
		return "", fmt.Errorf("%w: invalid fingerprint", interfaces.ErrMalformedInput)
	}
	data, err := m.store.Download(ctx, cidName(fingerprint))
	if err != nil {
		return "", err
	}
	return interfaces.ContentID(strings.TrimSpace(string(data))), nil
}

// SaveFileCid replaces the identifier stored for fingerprint.
func (m *BlobCIDMap) SaveFileCid(ctx context.Context, fingerprint string, cid interfaces.ContentID) error {
	if !ValidFingerprint(fingerprint) {
		return fmt.Errorf("%w: invalid fingerprint", interfaces.ErrMalformedInput)
	}
	_, err := m.store.Upload(ctx, cidName(fingerprint), []byte(cid))
	return err
}
