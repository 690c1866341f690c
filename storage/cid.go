package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// ComputeCID returns the CIDv1 (raw, sha2-256) of data.
func ComputeCID(data []byte) (interfaces.ContentID, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("could not hash content: %w", err)
	}
	return interfaces.ContentID(cid.NewCidV1(cid.Raw, sum).String()), nil
}

// validateName rejects object names that could escape a backend's namespace.
func validateName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid object name %q", interfaces.ErrMalformedInput, name)
	}
	return nil
}
