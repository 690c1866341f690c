package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/pgp-seed-backup/api"
	"github.com/ruteri/pgp-seed-backup/backup"
	"github.com/ruteri/pgp-seed-backup/httpserver"
	"github.com/ruteri/pgp-seed-backup/pgpengine"
	"github.com/ruteri/pgp-seed-backup/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBackupIdentity = "backup@example.com"

type cliHarness struct {
	t       *testing.T
	config  string
	dataDir string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	config := writeConfig(t, `
derivation:
  seed_phrase_length: 12
  special_identities:
    backup: `+testBackupIdentity+`
`)
	return &cliHarness{t: t, config: config, dataDir: t.TempDir()}
}

// run executes one keyringctl invocation and returns its standard output.
func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard

	argv := []string{"keyringctl", "--config", h.config, "--data-dir", h.dataDir, "--password", "correct horse", "--quiet"}
	err := app.Run(append(argv, args...))
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "keyringctl %s", strings.Join(args, " "))
	return out
}

var phraseWord = regexp.MustCompile(`(?m)^\s*\d+\. (\S+)$`)

func newBackupServer(t *testing.T) (*httptest.Server, *storage.FileBackend) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)

	cids := backup.NewBlobCIDMap(store)
	authorizer := backup.NewAuthorizer(store, pgpengine.Verifier{}, testBackupIdentity, log)
	handler := httpserver.NewHandler(backup.NewAcceptor(authorizer, store, cids, log), store, cids, nil, log)

	r := chi.NewRouter()
	r.Post(api.BackupPath, handler.HandleUpload)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestCommandsEndToEnd(t *testing.T) {
	h := newCLIHarness(t)

	out := h.mustRun("status")
	assert.Contains(t, out, "never_started")

	out = h.mustRun("create-seed", "--skip-quiz")
	matches := phraseWord.FindAllStringSubmatch(out, -1)
	require.Len(t, matches, 12)
	words := make([]string, 0, len(matches))
	for _, m := range matches {
		words = append(words, m[1])
	}
	assert.Contains(t, out, "Seed saved")

	_, err := h.run("create-seed", "--skip-quiz")
	assert.Error(t, err, "a second seed is refused")

	assert.Contains(t, h.mustRun("start"), "ready")
	h.mustRun("add-account", "--address", "Alice@Example.com", "--name", "Alice")

	out = h.mustRun("keys")
	assert.Contains(t, out, "alice@example.com")
	assert.NotContains(t, out, testBackupIdentity)

	out = h.mustRun("keys", "--all")
	require.Contains(t, out, testBackupIdentity)
	backupLine := regexp.MustCompile(`(?m)^(\S+)\s+` + regexp.QuoteMeta(testBackupIdentity)).FindStringSubmatch(out)
	require.Len(t, backupLine, 2)

	payload := filepath.Join(t.TempDir(), "mailbox.tar")
	require.NoError(t, os.WriteFile(payload, []byte("mailbox contents"), 0o600))

	bundleDir := filepath.Join(t.TempDir(), "bundle")
	h.mustRun("export-backup", "--out", bundleDir, payload)
	entries, err := os.ReadDir(bundleDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	var files []backup.File
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(bundleDir, e.Name()))
		require.NoError(t, err)
		files = append(files, backup.File{Name: e.Name(), Data: data})
	}
	bundle, ok := backup.ResolveBundle(files)
	require.True(t, ok)
	assert.Equal(t, "mailbox contents", string(bundle.Data))
	assert.True(t, pgpengine.Verifier{}.VerifySignature(bundle.PublicKey, bundle.Signature, bundle.Data, testBackupIdentity))

	srv, store := newBackupServer(t)
	out = h.mustRun("--server", srv.URL, "export-backup", payload)
	assert.Contains(t, out, "Uploaded backup")
	stored, err := store.Download(context.Background(), backup.BackupName(bundle.Fingerprint))
	require.NoError(t, err)
	assert.Equal(t, "mailbox contents", string(stored))

	// The same phrase rebuilds the same backup key in a fresh keyring.
	restored := newCLIHarness(t)
	restored.mustRun("restore-seed", "--words", strings.Join(words, " "))
	out = restored.mustRun("keys", "--all")
	assert.Contains(t, out, backupLine[1])

	h.mustRun("change-password", "--new-password", "battery staple")
	_, err = h.run("start")
	assert.Error(t, err, "the old password no longer opens the keyring")

	h.mustRun("reset", "--yes")
	assert.Contains(t, h.mustRun("status"), "never_started")
}
