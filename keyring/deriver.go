package keyring

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// Deriver derives account and reserved keypairs from a master key. It only
// exists once a valid configuration has been installed.
type Deriver struct {
	log    *slog.Logger
	engine interfaces.PGPEngine
	config interfaces.KeyDerivationConfig

	locks identityLocks
}

// NewDeriver validates config and takes a private copy of it.
func NewDeriver(config interfaces.KeyDerivationConfig, engine interfaces.PGPEngine, log *slog.Logger) (*Deriver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.SpecialIdentities = maps.Clone(config.SpecialIdentities)

	return &Deriver{
		log:    log,
		engine: engine,
		config: config,
		locks:  identityLocks{held: make(map[string]*sync.Mutex)},
	}, nil
}

// Config returns a copy of the installed configuration.
func (d *Deriver) Config() interfaces.KeyDerivationConfig {
	cfg := d.config
	cfg.SpecialIdentities = maps.Clone(d.config.SpecialIdentities)
	return cfg
}

// AccountKeyTag is the account specific tag mixed into account key derivation.
func AccountKeyTag(account interfaces.Account) string {
	sum := sha256.Sum256([]byte("account/" + account.Identity()))
	return base58.Encode(sum[:])
}

func specialKeyTag(role interfaces.KeyRole) string {
	return "special/" + string(role)
}

// EnsureAccountKeypair derives the account's keypair unless the engine already
// holds its secret key. It is a no-op when masterKey is empty.
func (d *Deriver) EnsureAccountKeypair(ctx context.Context, masterKey interfaces.MasterKey, account interfaces.Account) error {
	identity := account.Identity()
	if identity == "" {
		return fmt.Errorf("%w: account address is empty", interfaces.ErrMalformedInput)
	}
	if d.config.SpecialIdentities.IsReserved(identity) {
		return fmt.Errorf("%w: %s is a reserved identity", interfaces.ErrMalformedInput, identity)
	}
	return d.ensure(ctx, masterKey, identity, AccountKeyTag(account), interfaces.RoleAccount)
}

// EnsureSpecialKeypairs derives the keypair of every reserved role that has none yet.
func (d *Deriver) EnsureSpecialKeypairs(ctx context.Context, masterKey interfaces.MasterKey) error {
	for _, role := range interfaces.SpecialRoles {
		identity, ok := d.config.SpecialIdentities.Identity(role)
		if !ok {
			continue
		}
		if err := d.ensure(ctx, masterKey, identity, specialKeyTag(role), role); err != nil {
			return fmt.Errorf("could not ensure %s keypair: %w", role, err)
		}
	}
	return nil
}

func (d *Deriver) ensure(ctx context.Context, masterKey interfaces.MasterKey, identity, tag string, role interfaces.KeyRole) error {
	if len(masterKey) == 0 {
		return nil
	}
	identity = interfaces.CanonicalIdentity(identity)

	unlock := d.locks.lock(identity)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if d.engine.HasSecretKey(identity) {
		return nil
	}

	d.log.Debug("deriving keypair", "role", role.String())
	return d.engine.DeriveKeypair(ctx, masterKey, identity, tag, role)
}

// ListUserPublicKeys returns the engine's keys without any reserved key.
func (d *Deriver) ListUserPublicKeys() []interfaces.PublicKeyInfo {
	all := d.engine.ListPublicKeys()
	keys := make([]interfaces.PublicKeyInfo, 0, len(all))
	for _, k := range all {
		if k.Role.IsSpecial() || d.config.SpecialIdentities.IsReserved(k.Identity) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// identityLocks serializes the existence check and derivation per identity.
type identityLocks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func (l *identityLocks) lock(identity string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.held[identity]
	if !ok {
		m = &sync.Mutex{}
		l.held[identity] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
