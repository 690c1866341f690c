package recordstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	bolt "go.etcd.io/bbolt"
)

const (
	// dbTimeout is how long Open waits for the file lock.
	dbTimeout = time.Second

	latestStoreVersion = 0x01
)

// Buckets for storing data in the database.
var (
	metaBucket     = []byte("meta")
	secretsBucket  = []byte("secrets")
	accountsBucket = []byte("accounts")
	pgpBucket      = []byte("pgp")

	dataKeyKey   = []byte("dataKey")
	versionKey   = []byte("version")
	masterKeyKey = []byte("masterKey")
)

// Store is a bbolt backed interfaces.RecordStore.
type Store struct {
	path string
	kdf  KDFParams
	log  *slog.Logger

	mu      sync.RWMutex
	db      *bolt.DB
	dataKey []byte
}

// New creates a store kept in the file at path. Nothing is touched on disk
// until Create or Open.
func New(path string, log *slog.Logger) *Store {
	return &Store{
		path: path,
		kdf:  DefaultKDFParams,
		log:  log,
	}
}

// WithKDFParams sets the argon2id parameters used for newly wrapped keys.
func (s *Store) WithKDFParams(params KDFParams) *Store {
	s.kdf = params
	return s
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the database file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Create initializes a new database protected by password.
func (s *Store) Create(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Exists() {
		return interfaces.ErrStoreExists
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("could not create store directory: %w", err)
	}

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return fmt.Errorf("could not create record store: %w", err)
	}

	dataKey := make([]byte, dataKeySize)
	if _, err := rand.Read(dataKey); err != nil {
		db.Close()
		os.Remove(s.path)
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{secretsBucket, accountsBucket, pgpBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		wrapped, err := wrapDataKey(password, dataKey, s.kdf)
		if err != nil {
			return err
		}
		if err := meta.Put(dataKeyKey, wrapped); err != nil {
			return err
		}
		return meta.Put(versionKey, []byte{latestStoreVersion})
	})
	if err != nil {
		db.Close()
		os.Remove(s.path)
		return fmt.Errorf("could not initialize record store: %w", err)
	}

	s.db = db
	s.dataKey = dataKey
	s.log.Info("created record store", "path", s.path)
	return nil
}

// Open unlocks an existing database. A wrong password yields interfaces.ErrBadCredential.
// If the store is already open, Open only checks the password and a failed
// check leaves the open handle in place.
func (s *Store) Open(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return interfaces.ErrStoreNotFound
	}

	if s.db != nil {
		dataKey, err := unlockDataKey(s.db, password)
		if err != nil {
			return err
		}
		zeroBytes(dataKey)
		return nil
	}

	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return fmt.Errorf("could not open record store: %w", err)
	}

	dataKey, err := unlockDataKey(db, password)
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.dataKey = dataKey
	s.log.Debug("opened record store", "path", s.path)
	return nil
}

// unlockDataKey unwraps the data key stored in db with password.
func unlockDataKey(db *bolt.DB, password string) ([]byte, error) {
	var dataKey []byte
	err := db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			return errInvalidEnvelope
		}
		raw := meta.Get(dataKeyKey)
		if raw == nil {
			return errInvalidEnvelope
		}
		var err error
		dataKey, err = unwrapDataKey(password, raw)
		return err
	})
	if errors.Is(err, interfaces.ErrBadCredential) {
		return nil, interfaces.ErrBadCredential
	}
	if err != nil {
		return nil, fmt.Errorf("could not unlock record store: %w", err)
	}
	return dataKey, nil
}

// Close releases the database. The store can be opened again later.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	zeroBytes(s.dataKey)
	s.dataKey = nil
	return err
}

// Reset closes and deletes the database file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		s.log.Warn("could not close record store before reset", "err", err)
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("could not remove record store: %w", err)
	}
	s.log.Info("record store reset", "path", s.path)
	return nil
}

// ChangePassword re-wraps the data key. Records are left untouched.
func (s *Store) ChangePassword(oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return interfaces.ErrStoreNotOpen
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		dataKey, err := unwrapDataKey(oldPassword, meta.Get(dataKeyKey))
		if err != nil {
			return err
		}
		defer zeroBytes(dataKey)

		wrapped, err := wrapDataKey(newPassword, dataKey, s.kdf)
		if err != nil {
			return err
		}
		return meta.Put(dataKeyKey, wrapped)
	})
}

// GetAccounts returns every stored account ordered by address.
func (s *Store) GetAccounts() ([]interfaces.Account, error) {
	var accounts []interfaces.Account
	err := s.forEach(accountsBucket, func(_ string, plaintext []byte) error {
		var account interfaces.Account
		if err := json.Unmarshal(plaintext, &account); err != nil {
			return fmt.Errorf("could not decode account: %w", err)
		}
		accounts = append(accounts, account)
		return nil
	})
	return accounts, err
}

// AddAccount stores account keyed by its identity. Re-adding a known account is a no-op.
func (s *Store) AddAccount(account interfaces.Account) error {
	identity := account.Identity()
	if identity == "" {
		return fmt.Errorf("%w: account address is empty", interfaces.ErrMalformedInput)
	}

	exists, err := s.has(accountsBucket, []byte(identity))
	if err != nil || exists {
		return err
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return s.put(accountsBucket, []byte(identity), raw)
}

// HasMasterKey reports whether a master key was persisted.
func (s *Store) HasMasterKey() (bool, error) {
	return s.has(secretsBucket, masterKeyKey)
}

// GetMasterKey returns interfaces.ErrMasterKeyNotInitialized when none was stored.
func (s *Store) GetMasterKey() (interfaces.MasterKey, error) {
	raw, err := s.get(secretsBucket, masterKeyKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, interfaces.ErrMasterKeyNotInitialized
	}
	return interfaces.MasterKey(raw), nil
}

// SetMasterKey persists key, replacing any stored one.
func (s *Store) SetMasterKey(key interfaces.MasterKey) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty master key", interfaces.ErrMalformedInput)
	}
	return s.put(secretsBucket, masterKeyKey, key)
}

// PutKeyRecord stores one encrypted OpenPGP key record under id.
func (s *Store) PutKeyRecord(id string, record []byte) error {
	return s.put(pgpBucket, []byte(id), record)
}

// KeyRecords returns every decrypted key record keyed by id.
func (s *Store) KeyRecords() (map[string][]byte, error) {
	records := make(map[string][]byte)
	err := s.forEach(pgpBucket, func(id string, plaintext []byte) error {
		records[id] = plaintext
		return nil
	})
	return records, err
}

func (s *Store) put(bucket, key, plaintext []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return interfaces.ErrStoreNotOpen
	}
	sealed, err := seal(s.dataKey, plaintext, recordAD(bucket, key))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, sealed)
	})
}

// get returns nil without error for a missing key.
func (s *Store) get(bucket, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, interfaces.ErrStoreNotOpen
	}
	var plaintext []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		sealed := tx.Bucket(bucket).Get(key)
		if sealed == nil {
			return nil
		}
		var err error
		plaintext, err = open(s.dataKey, sealed, recordAD(bucket, key))
		return err
	})
	return plaintext, err
}

func (s *Store) has(bucket, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return false, interfaces.ErrStoreNotOpen
	}
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (s *Store) forEach(bucket []byte, fn func(key string, plaintext []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return interfaces.ErrStoreNotOpen
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			plaintext, err := open(s.dataKey, v, recordAD(bucket, k))
			if err != nil {
				return fmt.Errorf("record %s/%s: %w", bucket, k, err)
			}
			return fn(string(k), plaintext)
		})
	})
}
