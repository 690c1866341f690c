package keyring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/ruteri/pgp-seed-backup/seed"
)

// seedQuizQuestions is how many words of a new phrase the user must repeat.
const seedQuizQuestions = 3

// State is the lifecycle state of a Controller.
type State int

const (
	// StateNeverStarted is the state before the first Start of this process.
	StateNeverStarted State = iota

	// StateAwaitingSeed means the record store is open but no master key is
	// persisted or held; a seed phrase must be created or restored.
	StateAwaitingSeed

	// StateSessionStarting is held while Start runs.
	StateSessionStarting

	// StateReady means the master key is persisted and loaded.
	StateReady

	// StateReset follows Reset; the record store is gone.
	StateReset
)

func (s State) String() string {
	switch s {
	case StateNeverStarted:
		return "never_started"
	case StateAwaitingSeed:
		return "awaiting_seed"
	case StateSessionStarting:
		return "session_starting"
	case StateReady:
		return "ready"
	case StateReset:
		return "reset"
	default:
		return "unknown"
	}
}

// BackupProtector is told which identity signs backups once configuration is installed.
type BackupProtector interface {
	BindSigningIdentity(identity string)
}

// heldSeed is a created or restored master key that is not durable yet.
type heldSeed struct {
	masterKey interfaces.MasterKey
}

// Controller drives the key lifecycle.
type Controller struct {
	log       *slog.Logger
	store     interfaces.RecordStore
	engine    interfaces.PGPEngine
	source    interfaces.MasterKeySource
	protector BackupProtector

	mu        sync.Mutex
	state     State
	deriver   *Deriver // nil until configured
	held      *heldSeed
	masterKey interfaces.MasterKey // set in StateReady
	quiz      *seed.Quiz
}

// NewController creates a controller. protector may be nil.
func NewController(store interfaces.RecordStore, engine interfaces.PGPEngine, source interfaces.MasterKeySource, protector BackupProtector, log *slog.Logger) *Controller {
	return &Controller{
		log:       log,
		store:     store,
		engine:    engine,
		source:    source,
		protector: protector,
		state:     StateNeverStarted,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetKeyDerivationConfiguration installs config. It can succeed only once.
func (c *Controller) SetKeyDerivationConfiguration(config interfaces.KeyDerivationConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver != nil {
		return interfaces.ErrAlreadyConfigured
	}
	deriver, err := NewDeriver(config, c.engine, c.log)
	if err != nil {
		return err
	}
	c.deriver = deriver

	if c.protector != nil {
		backupIdentity, _ := deriver.config.SpecialIdentities.Identity(interfaces.RoleBackup)
		c.protector.BindSigningIdentity(backupIdentity)
	}
	return nil
}

// Config returns the installed configuration.
func (c *Controller) Config() (interfaces.KeyDerivationConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return interfaces.KeyDerivationConfig{}, interfaces.ErrConfigNotInitialized
	}
	return c.deriver.Config(), nil
}

// IsNeverStarted reports whether the record store does not exist yet.
func (c *Controller) IsNeverStarted() bool {
	return !c.store.Exists()
}

// IsSeedInitialized reports whether a master key is persisted.
func (c *Controller) IsSeedInitialized() (bool, error) {
	if !c.store.Exists() {
		return false, nil
	}
	return c.store.HasMasterKey()
}

// CreateSeedPhrase generates a fresh phrase off the caller's goroutine, holds
// its master key and prepares the confirmation quiz. The words are returned
// to be shown to the user exactly once.
func (c *Controller) CreateSeedPhrase(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return nil, interfaces.ErrConfigNotInitialized
	}

	type generated struct {
		words []string
		key   interfaces.MasterKey
		err   error
	}
	done := make(chan generated, 1)
	go func() {
		words, err := c.source.GenerateSeedPhrase(ctx)
		if err != nil {
			done <- generated{err: err}
			return
		}
		key, err := c.source.GetMasterKey()
		done <- generated{words: words, key: key, err: err}
	}()

	var res generated
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("could not generate seed phrase: %w", res.err)
	}

	quiz, err := seed.NewQuiz(res.words, min(seedQuizQuestions, len(res.words)), nil)
	if err != nil {
		res.key.Zero()
		return nil, err
	}

	c.holdLocked(res.key)
	c.quiz = quiz
	c.log.Info("created seed phrase", "words", len(res.words))
	return res.words, nil
}

// RestoreSeedPhrase holds the master key reconstructed from words.
func (c *Controller) RestoreSeedPhrase(words []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return interfaces.ErrConfigNotInitialized
	}
	if len(words) != c.deriver.config.SeedPhraseLength {
		return fmt.Errorf("%w: expected %d words, got %d", interfaces.ErrMalformedInput, c.deriver.config.SeedPhraseLength, len(words))
	}

	if err := c.source.RestoreFromSeedPhrase(words); err != nil {
		return err
	}
	key, err := c.source.GetMasterKey()
	if err != nil {
		return err
	}

	c.holdLocked(key)
	c.quiz = nil
	c.log.Info("restored seed phrase")
	return nil
}

func (c *Controller) holdLocked(key interfaces.MasterKey) {
	if c.held != nil {
		c.held.masterKey.Zero()
	}
	c.held = &heldSeed{masterKey: key}
}

// SeedQuiz returns the quiz of the last created phrase, or nil.
func (c *Controller) SeedQuiz() *seed.Quiz {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiz
}

// Start opens (or creates) the record store with password, loads the key
// context and then either loads the persisted master key or finalizes a held
// one. Without either it leaves the controller in StateAwaitingSeed.
//
// A wrong password returns interfaces.ErrBadCredential unwrapped.
func (c *Controller) Start(ctx context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = StateSessionStarting

	if err := c.openOrCreateLocked(password); err != nil {
		c.state = prev
		if errors.Is(err, interfaces.ErrBadCredential) {
			c.log.Warn("record store rejected password")
			return interfaces.ErrBadCredential
		}
		return fmt.Errorf("could not open record store: %w", err)
	}

	if err := c.engine.Load(ctx); err != nil {
		c.state = prev
		return fmt.Errorf("could not load key context: %w", err)
	}

	persisted, err := c.store.HasMasterKey()
	if err != nil {
		c.state = prev
		return fmt.Errorf("could not check master key: %w", err)
	}

	if persisted {
		key, err := c.store.GetMasterKey()
		if err != nil {
			c.state = prev
			return fmt.Errorf("could not load master key: %w", err)
		}
		return c.activatePersistedLocked(ctx, key)
	}

	if err := c.finalizeLocked(ctx); err != nil {
		if c.masterKey == nil {
			c.state = StateAwaitingSeed
		}
		return err
	}
	if c.masterKey == nil {
		c.state = StateAwaitingSeed
		c.log.Info("record store open, awaiting seed phrase")
	}
	return nil
}

func (c *Controller) openOrCreateLocked(password string) error {
	if c.store.Exists() {
		return c.store.Open(password)
	}
	return c.store.Create(password)
}

// activatePersistedLocked makes key the session master key and heals any
// keypair an interrupted finalization left underived.
func (c *Controller) activatePersistedLocked(ctx context.Context, key interfaces.MasterKey) error {
	if c.held != nil {
		c.log.Warn("discarding held seed, a master key is already persisted")
		c.held.masterKey.Zero()
		c.held = nil
	}
	c.masterKey.Zero()
	c.masterKey = key
	c.state = StateReady

	if c.deriver == nil {
		c.log.Debug("configuration not installed, skipping keypair checks")
		return nil
	}
	return c.ensureAllLocked(ctx)
}

// FinalizeSeedInitialization persists a held master key and derives every
// keypair. Without a held key it does nothing.
func (c *Controller) FinalizeSeedInitialization(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.finalizeLocked(ctx)
}

func (c *Controller) finalizeLocked(ctx context.Context) error {
	if c.held == nil {
		return nil
	}
	if c.deriver == nil {
		return interfaces.ErrConfigNotInitialized
	}

	persisted, err := c.store.HasMasterKey()
	if err != nil {
		return fmt.Errorf("could not check master key: %w", err)
	}
	if persisted {
		c.log.Warn("master key already persisted, not overwriting it")
		c.held.masterKey.Zero()
		c.held = nil
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.SetMasterKey(c.held.masterKey); err != nil {
		return fmt.Errorf("could not persist master key: %w", err)
	}

	c.masterKey = c.held.masterKey
	c.held = nil
	c.state = StateReady
	c.log.Info("master key persisted")

	return c.ensureAllLocked(ctx)
}

func (c *Controller) ensureAllLocked(ctx context.Context) error {
	accounts, err := c.store.GetAccounts()
	if err != nil {
		return fmt.Errorf("could not list accounts: %w", err)
	}
	for _, account := range accounts {
		if err := c.deriver.EnsureAccountKeypair(ctx, c.masterKey, account); err != nil {
			return fmt.Errorf("could not ensure keypair for account: %w", err)
		}
	}
	return c.deriver.EnsureSpecialKeypairs(ctx, c.masterKey)
}

// EnsureAccountKeypair derives the account's keypair if missing. It does
// nothing while no master key is loaded.
func (c *Controller) EnsureAccountKeypair(ctx context.Context, account interfaces.Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return interfaces.ErrConfigNotInitialized
	}
	return c.deriver.EnsureAccountKeypair(ctx, c.masterKey, account)
}

// EnsureSpecialKeypairs derives every missing reserved keypair.
func (c *Controller) EnsureSpecialKeypairs(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return interfaces.ErrConfigNotInitialized
	}
	return c.deriver.EnsureSpecialKeypairs(ctx, c.masterKey)
}

// AddAccount persists account and derives its keypair.
func (c *Controller) AddAccount(ctx context.Context, account interfaces.Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return interfaces.ErrConfigNotInitialized
	}
	if c.state != StateReady {
		return interfaces.ErrMasterKeyNotInitialized
	}
	if c.deriver.config.SpecialIdentities.IsReserved(account.Identity()) {
		return fmt.Errorf("%w: %s is a reserved identity", interfaces.ErrMalformedInput, account.Identity())
	}
	if err := c.store.AddAccount(account); err != nil {
		return fmt.Errorf("could not store account: %w", err)
	}
	return c.deriver.EnsureAccountKeypair(ctx, c.masterKey, account)
}

// ListUserPublicKeys returns every key except the reserved ones.
func (c *Controller) ListUserPublicKeys() ([]interfaces.PublicKeyInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deriver == nil {
		return nil, interfaces.ErrConfigNotInitialized
	}
	return c.deriver.ListUserPublicKeys(), nil
}

// ChangePassword re-encrypts the record store under newPassword.
func (c *Controller) ChangePassword(oldPassword, newPassword string) error {
	err := c.store.ChangePassword(oldPassword, newPassword)
	if errors.Is(err, interfaces.ErrBadCredential) {
		return interfaces.ErrBadCredential
	}
	return err
}

// Reset forgets every secret held in memory and wipes the record store.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held != nil {
		c.held.masterKey.Zero()
		c.held = nil
	}
	c.masterKey.Zero()
	c.masterKey = nil
	c.quiz = nil
	if f, ok := c.source.(interface{ Forget() }); ok {
		f.Forget()
	}
	c.engine.Unload()

	if err := c.store.Reset(); err != nil {
		return fmt.Errorf("could not reset record store: %w", err)
	}
	c.state = StateReset
	c.log.Info("keyring reset")
	return nil
}
