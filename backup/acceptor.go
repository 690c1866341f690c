package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// ErrNotAllowed is returned by Accept when the bundle fails authorization.
var ErrNotAllowed = errors.New("upload not allowed")

// Acceptor authorizes and stores uploaded bundles.
type Acceptor struct {
	log        *slog.Logger
	authorizer *Authorizer
	store      interfaces.BlobStore
	cids       interfaces.ContentIDMap

	mu    sync.Mutex
	locks map[string]*fingerprintLock
}

// fingerprintLock serializes uploads of one fingerprint. It lives in the map
// only while some upload holds or waits for it.
type fingerprintLock struct {
	mu      sync.Mutex
	holders int
}

// NewAcceptor returns an Acceptor that stores bundles approved by authorizer
// in store and records their content identifiers in cids.
func NewAcceptor(authorizer *Authorizer, store interfaces.BlobStore, cids interfaces.ContentIDMap, log *slog.Logger) *Acceptor {
	return &Acceptor{
		log:        log,
		authorizer: authorizer,
		store:      store,
		cids:       cids,
		locks:      make(map[string]*fingerprintLock),
	}
}

func (a *Acceptor) lock(fingerprint string) (unlock func()) {
	a.mu.Lock()
	l, ok := a.locks[fingerprint]
	if !ok {
		l = &fingerprintLock{}
		a.locks[fingerprint] = l
	}
	l.holders++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		a.mu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(a.locks, fingerprint)
		}
		a.mu.Unlock()
	}
}

func (a *Acceptor) pendingLocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}

// Accept stores files if they form an authorized bundle and returns the
// content identifier of the backup data. The registered public key of a
// fingerprint is written once and never replaced.
func (a *Acceptor) Accept(ctx context.Context, files []File) (interfaces.ContentID, error) {
	bundle, ok := ResolveBundle(files)
	if !ok {
		return "", ErrNotAllowed
	}

	unlock := a.lock(bundle.Fingerprint)
	defer unlock()

	allowed, err := a.authorizer.authorize(ctx, bundle)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrNotAllowed
	}

	pubName := PublicKeyName(bundle.Fingerprint)
	registered, err := a.store.Exists(ctx, pubName)
	if err != nil {
		return "", fmt.Errorf("could not look up registered key: %w", err)
	}
	if !registered {
		if _, err := a.store.Upload(ctx, pubName, bundle.PublicKey); err != nil {
			return "", fmt.Errorf("could not store public key: %w", err)
		}
	}
	if _, err := a.store.Upload(ctx, SignatureName(bundle.Fingerprint), bundle.Signature); err != nil {
		return "", fmt.Errorf("could not store signature: %w", err)
	}
	cid, err := a.store.Upload(ctx, BackupName(bundle.Fingerprint), bundle.Data)
	if err != nil {
		return "", fmt.Errorf("could not store backup: %w", err)
	}

	if err := a.cids.SaveFileCid(ctx, bundle.Fingerprint, cid); err != nil {
		return "", fmt.Errorf("could not save content identifier: %w", err)
	}

	a.log.Info("backup stored", "fingerprint", bundle.Fingerprint, "cid", cid.String(), "first", !registered)
	return cid, nil
}
