package recordstore

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKDF = KDFParams{Time: 1, MemoryKB: 1024, Threads: 1}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(filepath.Join(t.TempDir(), "keyring", "keyring.db"), log).WithKDFParams(testKDF)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateOpenLifecycle(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Exists())

	require.ErrorIs(t, s.Open("pw"), interfaces.ErrStoreNotFound)

	require.NoError(t, s.Create("pw"))
	assert.True(t, s.Exists())
	require.ErrorIs(t, s.Create("pw"), interfaces.ErrStoreExists)

	has, err := s.HasMasterKey()
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SetMasterKey(interfaces.MasterKey{1, 2, 3}))
	require.NoError(t, s.Close())

	_, err = s.GetMasterKey()
	require.ErrorIs(t, err, interfaces.ErrStoreNotOpen)

	require.NoError(t, s.Open("pw"))
	key, err := s.GetMasterKey()
	require.NoError(t, err)
	assert.Equal(t, interfaces.MasterKey{1, 2, 3}, key)
}

func TestOpenWrongPassword(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("right"))
	require.NoError(t, s.Close())

	err := s.Open("wrong")
	assert.Equal(t, interfaces.ErrBadCredential, err)

	_, err = s.HasMasterKey()
	assert.ErrorIs(t, err, interfaces.ErrStoreNotOpen)

	require.NoError(t, s.Open("right"))
}

func TestOpenWrongPasswordKeepsOpenStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("right"))

	assert.Equal(t, interfaces.ErrBadCredential, s.Open("wrong"))

	require.NoError(t, s.SetMasterKey(interfaces.MasterKey{3}))
	key, err := s.GetMasterKey()
	require.NoError(t, err)
	assert.Equal(t, interfaces.MasterKey{3}, key)
}

func TestOpenTwice(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("pw"))
	require.NoError(t, s.SetMasterKey(interfaces.MasterKey{9}))

	require.NoError(t, s.Open("pw"))
	require.NoError(t, s.Open("pw"))

	key, err := s.GetMasterKey()
	require.NoError(t, err)
	assert.Equal(t, interfaces.MasterKey{9}, key)
}

func TestChangePassword(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("old"))
	require.NoError(t, s.SetMasterKey(interfaces.MasterKey{7, 7}))

	assert.ErrorIs(t, s.ChangePassword("nope", "new"), interfaces.ErrBadCredential)
	require.NoError(t, s.ChangePassword("old", "new"))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Open("old"), interfaces.ErrBadCredential)
	require.NoError(t, s.Open("new"))

	key, err := s.GetMasterKey()
	require.NoError(t, err)
	assert.Equal(t, interfaces.MasterKey{7, 7}, key)
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("pw"))

	require.NoError(t, s.AddAccount(interfaces.Account{Address: "Bob@Example.org", DisplayName: "Bob"}))
	require.NoError(t, s.AddAccount(interfaces.Account{Address: "alice@example.org"}))
	require.NoError(t, s.AddAccount(interfaces.Account{Address: "bob@example.org", DisplayName: "Other"}))
	assert.ErrorIs(t, s.AddAccount(interfaces.Account{Address: "  "}), interfaces.ErrMalformedInput)

	accounts, err := s.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice@example.org", accounts[0].Address)
	assert.Equal(t, "Bob", accounts[1].DisplayName)
	assert.False(t, accounts[1].CreatedAt.IsZero())
}

func TestKeyRecords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("pw"))

	require.NoError(t, s.PutKeyRecord("aa", []byte("first")))
	require.NoError(t, s.PutKeyRecord("bb", []byte("second")))
	require.NoError(t, s.PutKeyRecord("aa", []byte("replaced")))

	records, err := s.KeyRecords()
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"aa": []byte("replaced"), "bb": []byte("second")}, records)
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("pw"))
	require.NoError(t, s.SetMasterKey(interfaces.MasterKey{1}))

	require.NoError(t, s.Reset())
	assert.False(t, s.Exists())
	require.NoError(t, s.Reset())

	require.NoError(t, s.Create("other"))
	has, err := s.HasMasterKey()
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRecordsAreBoundToLocation(t *testing.T) {
	key := make([]byte, dataKeySize)
	sealed, err := seal(key, []byte("secret"), recordAD(secretsBucket, masterKeyKey))
	require.NoError(t, err)

	_, err = open(key, sealed, recordAD(pgpBucket, masterKeyKey))
	assert.Error(t, err)

	plaintext, err := open(key, sealed, recordAD(secretsBucket, masterKeyKey))
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), plaintext)
}
