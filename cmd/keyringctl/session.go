package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ruteri/pgp-seed-backup/api/clients"
	"github.com/ruteri/pgp-seed-backup/backup"
	"github.com/ruteri/pgp-seed-backup/cmd/flags"
	"github.com/ruteri/pgp-seed-backup/keyring"
	"github.com/ruteri/pgp-seed-backup/pgpengine"
	"github.com/ruteri/pgp-seed-backup/recordstore"
	"github.com/ruteri/pgp-seed-backup/seed"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// session wires one keyring for the lifetime of a command.
type session struct {
	cfg        Config
	log        *slog.Logger
	store      *recordstore.Store
	engine     *pgpengine.Engine
	exporter   *backup.Exporter
	controller *keyring.Controller
	in         *bufio.Reader
	out        io.Writer
	quiet      bool
}

func newSession(cCtx *cli.Context) (*session, error) {
	cfg, err := loadConfig(cCtx.String("config"), cCtx.IsSet("config"))
	if err != nil {
		return nil, err
	}
	if cCtx.IsSet("data-dir") {
		cfg.DataDir = cCtx.String("data-dir")
	}
	if cCtx.IsSet("server") {
		cfg.Server.URL = cCtx.String("server")
	}

	log := flags.SetupLogger(cCtx)
	if !cCtx.Bool(flags.LogDebugFlag.Name) {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	source, err := seed.NewSource(cfg.Derivation.SeedPhraseLength)
	if err != nil {
		return nil, err
	}

	store := recordstore.New(cfg.storePath(), log)
	engine := pgpengine.NewEngine(store, log)
	exporter := backup.NewExporter(engine, log)
	controller := keyring.NewController(store, engine, source, exporter, log)
	if err := controller.SetKeyDerivationConfiguration(cfg.Derivation); err != nil {
		return nil, err
	}

	return &session{
		cfg:        cfg,
		log:        log,
		store:      store,
		engine:     engine,
		exporter:   exporter,
		controller: controller,
		in:         bufio.NewReader(os.Stdin),
		out:        cCtx.App.Writer,
		quiet:      cCtx.Bool("quiet"),
	}, nil
}

func (s *session) Close() {
	s.store.Close()
}

func (s *session) printf(format string, a ...interface{}) {
	fmt.Fprintf(s.out, format, a...)
}

// prompt reads one line from stdin.
func (s *session) prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("could not read %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ":")), err)
	}
	return strings.TrimSpace(line), nil
}

// secret reads one line without echo when stdin is a terminal.
func (s *session) secret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return s.prompt(label)
	}

	fmt.Fprint(os.Stderr, label)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(string(value)), nil
}

// password returns the --password flag value or prompts for it.
func (s *session) password(cCtx *cli.Context) (string, error) {
	if cCtx.IsSet("password") {
		return cCtx.String("password"), nil
	}
	return s.secret("Password: ")
}

// start opens the keyring with the user's password.
func (s *session) start(ctx context.Context, cCtx *cli.Context) error {
	password, err := s.password(cCtx)
	if err != nil {
		return err
	}
	stop := startSpinner("Opening keyring...", s.quiet)
	err = s.controller.Start(ctx, password)
	stop()
	return err
}

// requireReady starts the keyring and fails unless a master key is available.
func (s *session) requireReady(ctx context.Context, cCtx *cli.Context) error {
	if s.controller.IsNeverStarted() {
		return fmt.Errorf("keyring not initialized, run %s or %s first", highlightText.Sprint("create-seed"), highlightText.Sprint("restore-seed"))
	}
	if err := s.start(ctx, cCtx); err != nil {
		return err
	}
	if s.controller.State() != keyring.StateReady {
		return fmt.Errorf("keyring has no seed, run %s or %s", highlightText.Sprint("create-seed"), highlightText.Sprint("restore-seed"))
	}
	return nil
}

// backupClient locates the backup server from the configuration.
func (s *session) backupClient(ctx context.Context) (*clients.BackupClient, error) {
	if s.cfg.Server.URL != "" {
		return clients.NewBackupClient(s.cfg.Server.URL), nil
	}
	if s.cfg.Server.SRV == "" {
		return nil, errors.New("no backup server configured, set server.url or server.srv")
	}
	urls, err := clients.ResolveBackupServers(ctx, s.cfg.Server.SRV, s.cfg.Server.Nameserver, s.cfg.Server.Scheme)
	if err != nil {
		return nil, err
	}
	return clients.NewBackupClient(urls[0]), nil
}
