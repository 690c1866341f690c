package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceRejectsUnsupportedLength(t *testing.T) {
	for _, n := range []int{0, 11, 13, 25} {
		_, err := NewSource(n)
		assert.ErrorIs(t, err, interfaces.ErrMalformedInput, "length %d", n)
	}
}

func TestGenerateAndRestore(t *testing.T) {
	for _, n := range []int{12, 15, 18, 21, 24} {
		src, err := NewSource(n)
		require.NoError(t, err)

		_, err = src.GetMasterKey()
		require.ErrorIs(t, err, interfaces.ErrMasterKeyNotInitialized)

		words, err := src.GenerateSeedPhrase(context.Background())
		require.NoError(t, err)
		require.Len(t, words, n)

		generated, err := src.GetMasterKey()
		require.NoError(t, err)
		require.Len(t, generated, 64)

		other, err := NewSource(n)
		require.NoError(t, err)
		require.NoError(t, other.RestoreFromSeedPhrase(words))

		restored, err := other.GetMasterKey()
		require.NoError(t, err)
		assert.Equal(t, generated, restored)
	}
}

func TestRestoreNormalizesWords(t *testing.T) {
	src, err := NewSource(12)
	require.NoError(t, err)
	words, err := src.GenerateSeedPhrase(context.Background())
	require.NoError(t, err)
	want, err := src.GetMasterKey()
	require.NoError(t, err)

	shouty := make([]string, len(words))
	for i, w := range words {
		shouty[i] = "  " + strings.ToUpper(w) + " "
	}
	require.NoError(t, src.RestoreFromSeedPhrase(shouty))
	got, err := src.GetMasterKey()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRestoreRejectsInvalidPhrase(t *testing.T) {
	src, err := NewSource(12)
	require.NoError(t, err)

	err = src.RestoreFromSeedPhrase([]string{"one", "two"})
	assert.ErrorIs(t, err, interfaces.ErrMalformedInput)

	bad := []string{"abandon", "abandon", "abandon", "abandon", "abandon", "abandon",
		"abandon", "abandon", "abandon", "abandon", "abandon", "abandon"}
	err = src.RestoreFromSeedPhrase(bad)
	assert.ErrorIs(t, err, interfaces.ErrInvalidSeedPhrase)

	_, err = src.GetMasterKey()
	assert.ErrorIs(t, err, interfaces.ErrMasterKeyNotInitialized)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	src, err := NewSource(12)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.GenerateSeedPhrase(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, err = src.GetMasterKey()
	assert.ErrorIs(t, err, interfaces.ErrMasterKeyNotInitialized)
}

func TestGetMasterKeyReturnsCopy(t *testing.T) {
	src, err := NewSource(12)
	require.NoError(t, err)
	_, err = src.GenerateSeedPhrase(context.Background())
	require.NoError(t, err)

	k1, err := src.GetMasterKey()
	require.NoError(t, err)
	k1.Zero()

	k2, err := src.GetMasterKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	src.Forget()
	_, err = src.GetMasterKey()
	assert.ErrorIs(t, err, interfaces.ErrMasterKeyNotInitialized)
}
