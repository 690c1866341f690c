package seed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/tyler-smith/go-bip39"
)

// Source is a BIP-39 backed interfaces.MasterKeySource.
type Source struct {
	wordCount int

	mu        sync.Mutex
	masterKey interfaces.MasterKey
}

// NewSource creates a source generating phrases of wordCount words.
func NewSource(wordCount int) (*Source, error) {
	if _, err := entropyBits(wordCount); err != nil {
		return nil, err
	}
	return &Source{wordCount: wordCount}, nil
}

func entropyBits(wordCount int) (int, error) {
	switch wordCount {
	case 12, 15, 18, 21, 24:
		return wordCount * 32 / 3, nil
	default:
		return 0, fmt.Errorf("%w: unsupported seed phrase length %d", interfaces.ErrMalformedInput, wordCount)
	}
}

// WordCount returns the configured phrase length.
func (s *Source) WordCount() int {
	return s.wordCount
}

// GenerateSeedPhrase creates a fresh phrase and holds its master key.
func (s *Source) GenerateSeedPhrase(ctx context.Context) ([]string, error) {
	bits, err := entropyBits(s.wordCount)
	if err != nil {
		return nil, err
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return nil, fmt.Errorf("could not generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("could not encode mnemonic: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.hold(bip39.NewSeed(mnemonic, ""))
	return strings.Fields(mnemonic), nil
}

// RestoreFromSeedPhrase validates words and holds the master key they produce.
func (s *Source) RestoreFromSeedPhrase(words []string) error {
	if len(words) != s.wordCount {
		return fmt.Errorf("%w: expected %d words, got %d", interfaces.ErrMalformedInput, s.wordCount, len(words))
	}

	mnemonic := NormalizePhrase(words)
	if !bip39.IsMnemonicValid(mnemonic) {
		return interfaces.ErrInvalidSeedPhrase
	}

	s.hold(bip39.NewSeed(mnemonic, ""))
	return nil
}

// GetMasterKey returns a copy of the held master key.
func (s *Source) GetMasterKey() (interfaces.MasterKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterKey == nil {
		return nil, interfaces.ErrMasterKeyNotInitialized
	}
	return s.masterKey.Clone(), nil
}

// Forget drops the held master key.
func (s *Source) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.masterKey.Zero()
	s.masterKey = nil
}

func (s *Source) hold(seed []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.masterKey.Zero()
	s.masterKey = interfaces.MasterKey(seed)
}

// NormalizePhrase joins words into the canonical lower-case mnemonic form.
func NormalizePhrase(words []string) string {
	normalized := make([]string, 0, len(words))
	for _, w := range words {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(w)))
	}
	return strings.Join(normalized, " ")
}
