package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// BlobStoreFactory creates blob stores from location URIs and manages
// multi-backend configurations for redundant storage.
type BlobStoreFactory struct {
	log *slog.Logger
}

// NewBlobStoreFactory creates a new factory instance.
func NewBlobStoreFactory(logger *slog.Logger) *BlobStoreFactory {
	return &BlobStoreFactory{log: logger}
}

// StoreFor creates a blob store from a location.
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS mutable file system
//   - vault:// - Vault KV v2 secrets engine
func (sf *BlobStoreFactory) StoreFor(location interfaces.StorageBackendLocation) (interfaces.BlobStore, error) {
	switch strings.ToLower(location.Scheme) {
	case "ipfs":
		return sf.createIPFSBackend(location)
	case "s3":
		return sf.createS3Backend(location)
	case "vault":
		return sf.createVaultBackend(location)
	case "file":
		return sf.createFileBackend(location)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
}

// CreateMultiStore creates a multi-backend store from a list of locations.
// Locations that fail to produce a backend are logged and skipped. Returns an
// error if no valid backends could be created.
func (sf *BlobStoreFactory) CreateMultiStore(locations []interfaces.StorageBackendLocation) (interfaces.BlobStore, error) {
	backends := make([]interfaces.BlobStore, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StoreFor(location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", location.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no valid storage backends created", interfaces.ErrInvalidLocationURI)
	}

	return NewMultiBlobStore(backends, sf.log), nil
}

// splitAuth returns the user and password parts of a location's userinfo.
func splitAuth(auth string) (string, string) {
	if auth == "" {
		return "", ""
	}
	user, pass, _ := strings.Cut(auth, ":")
	if u, err := url.PathUnescape(user); err == nil {
		user = u
	}
	if p, err := url.PathUnescape(pass); err == nil {
		pass = p
	}
	return user, pass
}

// createIPFSBackend creates an IPFS storage backend.
// URI format: ipfs://host:port/root-dir?timeout=30s
func (sf *BlobStoreFactory) createIPFSBackend(location interfaces.StorageBackendLocation) (interfaces.BlobStore, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", location.String()))

	u := url.URL{Host: location.Host}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing IPFS API host", interfaces.ErrInvalidLocationURI)
	}
	port := u.Port()
	if port == "" {
		port = "5001"
	}

	rootDir := location.Path
	if strings.Trim(rootDir, "/") == "" {
		rootDir = "/pgp-backups"
	}

	timeout := 30 * time.Second
	if raw := location.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, rootDir, timeout, sf.log)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
// Without embedded credentials the default AWS credential chain is used.
func (sf *BlobStoreFactory) createS3Backend(location interfaces.StorageBackendLocation) (interfaces.BlobStore, error) {
	sf.log.Debug("Creating S3 backend", slog.String("bucket", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket", interfaces.ErrInvalidLocationURI)
	}

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	accessKey, secretKey := splitAuth(location.Auth)
	return NewS3Backend(location.Host, strings.Trim(location.Path, "/"), region, location.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

// createVaultBackend creates a Vault KV v2 storage backend.
// URI format: vault://host:port/mount/path?tls=true&token=...&ca_cert=/path/ca.pem
// The first path segment is the KV mount, the rest is the data path.
func (sf *BlobStoreFactory) createVaultBackend(location interfaces.StorageBackendLocation) (interfaces.BlobStore, error) {
	sf.log.Debug("Creating Vault backend", slog.String("host", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: missing Vault host", interfaces.ErrInvalidLocationURI)
	}

	mount, dataPath, _ := strings.Cut(strings.Trim(location.Path, "/"), "/")
	if mount == "" {
		mount = "secret"
	}

	scheme := "http"
	if location.GetParamBool("tls") {
		scheme = "https"
	}

	opts := VaultOptions{
		Token:      location.GetParam("token"),
		CACert:     location.GetParam("ca_cert"),
		ClientCert: location.GetParam("client_cert"),
		ClientKey:  location.GetParam("client_key"),
	}
	if opts.Token == "" {
		opts.Token = os.Getenv("VAULT_TOKEN")
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", scheme, location.Host), mount, dataPath, opts, sf.log)
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *BlobStoreFactory) createFileBackend(location interfaces.StorageBackendLocation) (interfaces.BlobStore, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, location.String())
	}

	return NewFileBackend(path, sf.log)
}
