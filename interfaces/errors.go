package interfaces

import "errors"

// Not-initialized errors. The caller can recover by completing setup.
var (
	// ErrConfigNotInitialized is returned by derivation operations invoked
	// before the key derivation configuration was installed.
	ErrConfigNotInitialized = errors.New("key derivation configuration not initialized")

	// ErrMasterKeyNotInitialized is returned when an operation needs a master
	// key and none is held or persisted.
	ErrMasterKeyNotInitialized = errors.New("master key not initialized")

	// ErrStoreNotOpen is returned by record store accessors used before Open or Create.
	ErrStoreNotOpen = errors.New("record store not open")
)

// ErrBadCredential is returned when the record store cannot be opened with the
// supplied password. It is always surfaced as is, never wrapped.
var ErrBadCredential = errors.New("bad credential")

// Malformed-input errors.
var (
	ErrMalformedInput    = errors.New("malformed input")
	ErrNoKeyBundle       = errors.New("no key bundle found")
	ErrInvalidSeedPhrase = errors.New("invalid seed phrase")
	ErrAlreadyConfigured = errors.New("key derivation configuration already set")
	ErrStoreExists       = errors.New("record store already exists")
	ErrStoreNotFound     = errors.New("record store does not exist")
	ErrKeyNotFound       = errors.New("key not found")
)

// Storage errors.
var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)
