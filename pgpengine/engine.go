package pgpengine

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// keyRecord is the persisted form of one key.
type keyRecord struct {
	Role    interfaces.KeyRole `json:"role,omitempty"`
	Secret  bool               `json:"secret"`
	Packets []byte             `json:"packets"`
}

type entry struct {
	entity *openpgp.Entity
	role   interfaces.KeyRole
}

func (e *entry) hasSecret() bool {
	return e.entity.PrivateKey != nil && !e.entity.PrivateKey.Encrypted
}

// Engine implements interfaces.PGPEngine.
type Engine struct {
	Verifier

	log   *slog.Logger
	store interfaces.KeyContextStore

	mu   sync.RWMutex
	keys map[string]*entry // by fingerprint
}

// NewEngine creates an engine persisting keys to store.
func NewEngine(store interfaces.KeyContextStore, log *slog.Logger) *Engine {
	return &Engine{
		log:   log,
		store: store,
		keys:  make(map[string]*entry),
	}
}

// Load replaces the in-memory keys with the persisted key context.
func (e *Engine) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := e.store.KeyRecords()
	if err != nil {
		return fmt.Errorf("could not read key records: %w", err)
	}

	keys := make(map[string]*entry, len(records))
	for id, raw := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		var rec keyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("could not decode key record %s: %w", id, err)
		}
		list, err := openpgp.ReadKeyRing(bytes.NewReader(rec.Packets))
		if err != nil {
			return fmt.Errorf("could not parse key record %s: %w", id, err)
		}
		if len(list) != 1 {
			return fmt.Errorf("key record %s holds %d keys", id, len(list))
		}
		keys[id] = &entry{entity: list[0], role: rec.Role}
	}

	e.mu.Lock()
	e.keys = keys
	e.mu.Unlock()

	e.log.Debug("loaded key context", "keys", len(keys))
	return nil
}

// Unload drops the in-memory keys. Persisted records are untouched.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.keys = make(map[string]*entry)
}

// HasSecretKey reports whether a usable secret key is held for identity.
func (e *Engine) HasSecretKey(identity string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.secretFor(identity)
	return ok
}

func (e *Engine) secretFor(identity string) (*entry, bool) {
	identity = interfaces.CanonicalIdentity(identity)
	for _, k := range e.keys {
		if k.hasSecret() && entityEmail(k.entity) == identity {
			return k, true
		}
	}
	return nil, false
}

// DeriveKeypair derives and stores the keypair of identity.
func (e *Engine) DeriveKeypair(ctx context.Context, masterKey interfaces.MasterKey, identity, tag string, role interfaces.KeyRole) error {
	entity, err := DeriveEntity(masterKey, identity, tag)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.put(entity, role, true); err != nil {
		return err
	}
	e.log.Info("derived keypair", "role", role.String(), "fingerprint", Fingerprint(entity))
	return nil
}

func (e *Engine) put(entity *openpgp.Entity, role interfaces.KeyRole, secret bool) error {
	var buf bytes.Buffer
	var err error
	if secret {
		err = entity.SerializePrivateWithoutSigning(&buf, nil)
	} else {
		err = entity.Serialize(&buf)
	}
	if err != nil {
		return fmt.Errorf("could not serialize key: %w", err)
	}

	raw, err := json.Marshal(&keyRecord{Role: role, Secret: secret, Packets: buf.Bytes()})
	if err != nil {
		return err
	}

	fp := Fingerprint(entity)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.PutKeyRecord(fp, raw); err != nil {
		return fmt.Errorf("could not persist key %s: %w", fp, err)
	}
	e.keys[fp] = &entry{entity: entity, role: role}
	return nil
}

// ListPublicKeys returns every known key ordered by identity and fingerprint.
func (e *Engine) ListPublicKeys() []interfaces.PublicKeyInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]interfaces.PublicKeyInfo, 0, len(e.keys))
	for fp, k := range e.keys {
		info := interfaces.PublicKeyInfo{
			Identity:    entityEmail(k.entity),
			Fingerprint: fp,
			KeyID:       k.entity.PrimaryKey.KeyIdString(),
			Role:        k.role,
			HasSecret:   k.hasSecret(),
			CreatedAt:   k.entity.PrimaryKey.CreationTime.UTC(),
		}
		if ident := k.entity.PrimaryIdentity(); ident != nil && ident.UserId != nil {
			info.Name = ident.UserId.Name
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Identity != infos[j].Identity {
			return infos[i].Identity < infos[j].Identity
		}
		return infos[i].Fingerprint < infos[j].Fingerprint
	})
	return infos
}

// ImportPublicKeys adds public keys. Keys whose secret is already held are left as is.
func (e *Engine) ImportPublicKeys(data []byte, armored bool) error {
	list, err := readKeyRing(data, armored)
	if err != nil {
		return err
	}

	for _, entity := range list {
		e.mu.RLock()
		existing, ok := e.keys[Fingerprint(entity)]
		e.mu.RUnlock()
		if ok && existing.hasSecret() {
			continue
		}
		if err := e.put(entity, interfaces.RoleAccount, false); err != nil {
			return err
		}
	}
	e.log.Info("imported public keys", "count", len(list))
	return nil
}

// ImportSecretKeys adds secret keys. Passphrase protected keys are rejected.
func (e *Engine) ImportSecretKeys(data []byte, armored bool) error {
	list, err := readKeyRing(data, armored)
	if err != nil {
		return err
	}

	for _, entity := range list {
		if entity.PrivateKey == nil {
			return fmt.Errorf("%w: key %s has no secret part", interfaces.ErrMalformedInput, Fingerprint(entity))
		}
		if entity.PrivateKey.Encrypted {
			return fmt.Errorf("%w: key %s is passphrase protected", interfaces.ErrMalformedInput, Fingerprint(entity))
		}
	}

	for _, entity := range list {
		role := interfaces.RoleAccount
		e.mu.RLock()
		if existing, ok := e.keys[Fingerprint(entity)]; ok {
			role = existing.role
		}
		e.mu.RUnlock()

		if err := e.put(entity, role, true); err != nil {
			return err
		}
	}
	e.log.Info("imported secret keys", "count", len(list))
	return nil
}

// ImportKeyBundle imports an armored key block, choosing secret or public
// import from its header line.
func (e *Engine) ImportKeyBundle(bundle []byte) error {
	switch BundleKind(bundle) {
	case "private":
		return e.ImportSecretKeys(bundle, true)
	case "public":
		return e.ImportPublicKeys(bundle, true)
	default:
		return interfaces.ErrNoKeyBundle
	}
}

// BundleKind returns "private" or "public" depending on the first non-empty
// line of an armored bundle, or "" when neither appears in it.
func BundleKind(bundle []byte) string {
	for _, line := range strings.Split(string(bundle), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, "private"):
			return "private"
		case strings.Contains(line, "public"):
			return "public"
		default:
			return ""
		}
	}
	return ""
}

// ExportPublicKeyRing returns the armored public key matching a fingerprint or key ID.
func (e *Engine) ExportPublicKeyRing(keyID string) ([]byte, error) {
	e.mu.RLock()
	k, ok := e.lookup(keyID)
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, keyID)
	}
	return ArmorPublicKey(k.entity)
}

func (e *Engine) lookup(keyID string) (*entry, bool) {
	keyID = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(keyID), "0x"))
	if k, ok := e.keys[keyID]; ok {
		return k, true
	}
	for _, k := range e.keys {
		if k.entity.PrimaryKey.KeyIdString() == keyID {
			return k, true
		}
	}
	return nil, false
}

// Sign returns an armored detached signature of data by identity's secret key.
func (e *Engine) Sign(identity string, data []byte) ([]byte, error) {
	e.mu.RLock()
	k, ok := e.secretFor(identity)
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no secret key for %s", interfaces.ErrKeyNotFound, identity)
	}

	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, k.entity, bytes.NewReader(data), nil); err != nil {
		return nil, fmt.Errorf("could not sign: %w", err)
	}
	return buf.Bytes(), nil
}

// Fingerprint returns the upper-case hex fingerprint of the primary key.
func Fingerprint(entity *openpgp.Entity) string {
	return strings.ToUpper(hex.EncodeToString(entity.PrimaryKey.Fingerprint))
}

// ArmorPublicKey serializes the public part of entity as an armored key block.
func ArmorPublicKey(entity *openpgp.Entity) ([]byte, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := entity.Serialize(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func entityEmail(entity *openpgp.Entity) string {
	ident := entity.PrimaryIdentity()
	if ident == nil || ident.UserId == nil {
		return ""
	}
	return interfaces.CanonicalIdentity(ident.UserId.Email)
}

func readKeyRing(data []byte, armored bool) (openpgp.EntityList, error) {
	var list openpgp.EntityList
	var err error
	if armored {
		list, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	} else {
		list, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrMalformedInput, err)
	}
	if len(list) == 0 {
		return nil, interfaces.ErrNoKeyBundle
	}
	return list, nil
}
