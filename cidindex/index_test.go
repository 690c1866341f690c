package cidindex

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIndex(t *testing.T, dsn string) *Index {
	t.Helper()
	idx, err := Open(dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, ":memory:")

	_, err := idx.GetFileCid(ctx, "ABCDEF0123")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, idx.SaveFileCid(ctx, "ABCDEF0123", "bafk-first"))
	got, err := idx.GetFileCid(ctx, "ABCDEF0123")
	require.NoError(t, err)
	assert.Equal(t, interfaces.ContentID("bafk-first"), got)

	require.NoError(t, idx.SaveFileCid(ctx, "ABCDEF0123", "bafk-second"))
	got, err = idx.GetFileCid(ctx, "ABCDEF0123")
	require.NoError(t, err)
	assert.Equal(t, interfaces.ContentID("bafk-second"), got)

	var count int64
	require.NoError(t, idx.db.Model(&cidRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIndex_RejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	idx := setupTestIndex(t, ":memory:")

	tests := []struct {
		name        string
		fingerprint string
		cid         interfaces.ContentID
	}{
		{name: "empty fingerprint", fingerprint: "", cid: "bafk"},
		{name: "path fingerprint", fingerprint: "../etc", cid: "bafk"},
		{name: "empty cid", fingerprint: "ABCDEF", cid: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := idx.SaveFileCid(ctx, tt.fingerprint, tt.cid)
			assert.ErrorIs(t, err, interfaces.ErrMalformedInput)
		})
	}

	_, err := idx.GetFileCid(ctx, "has space")
	assert.ErrorIs(t, err, interfaces.ErrMalformedInput)
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "cids.db")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	idx, err := Open(dsn, log)
	require.NoError(t, err)
	require.NoError(t, idx.SaveFileCid(ctx, "FEEDBEEF", "bafk-kept"))
	require.NoError(t, idx.Close())

	idx, err = Open(dsn, log)
	require.NoError(t, err)
	defer idx.Close()

	got, err := idx.GetFileCid(ctx, "FEEDBEEF")
	require.NoError(t, err)
	assert.Equal(t, interfaces.ContentID("bafk-kept"), got)
}
