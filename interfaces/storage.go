package interfaces

import (
	"context"
	"fmt"
	"net/url"
)

// ContentID is an opaque content identifier (a CID string) of stored backup content.
type ContentID string

// String returns the identifier as stored.
func (id ContentID) String() string {
	return string(id)
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %w", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// BlobStore stores named objects. Backup bundle files and content identifier
// records live here.
type BlobStore interface {
	// Exists reports whether an object with the given name is stored.
	Exists(ctx context.Context, name string) (bool, error)

	// Download returns the object's bytes or ErrContentNotFound.
	Download(ctx context.Context, name string) ([]byte, error)

	// Upload stores data under name, replacing any previous object, and
	// returns the content identifier of the stored bytes.
	Upload(ctx context.Context, name string, data []byte) (ContentID, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// BlobStoreFactory creates blob stores from location URIs.
type BlobStoreFactory interface {
	// StoreFor creates a backend from a URI. Supports file://, s3://, ipfs://, vault://
	StoreFor(location StorageBackendLocation) (BlobStore, error)

	// CreateMultiStore creates an aggregated store over several locations.
	CreateMultiStore(locations []StorageBackendLocation) (BlobStore, error)
}

// ContentIDMap is a fingerprint keyed mapping to content identifiers.
type ContentIDMap interface {
	GetFileCid(ctx context.Context, fingerprint string) (ContentID, error)
	SaveFileCid(ctx context.Context, fingerprint string, cid ContentID) error
}
