package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/ruteri/pgp-seed-backup/keyring"
	"github.com/urfave/cli/v2"
)

// withSession runs fn with a session that is closed afterwards.
func withSession(fn func(cCtx *cli.Context, s *session) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		s, err := newSession(cCtx)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cCtx, s)
	}
}

func statusAction(cCtx *cli.Context, s *session) error {
	s.printf("Data directory: %s\n", s.cfg.DataDir)
	if s.controller.IsNeverStarted() {
		s.printf("State: %s\n", warningText.Sprint(keyring.StateNeverStarted))
		return nil
	}
	if !cCtx.IsSet("password") {
		s.printf("State: %s %s\n", "initialized", mutedText.Sprint("locked, pass --password to inspect"))
		return nil
	}
	if err := s.start(cCtx.Context, cCtx); err != nil {
		return err
	}

	state := s.controller.State()
	if state == keyring.StateReady {
		s.printf("State: %s\n", successText.Sprint(state))
	} else {
		s.printf("State: %s\n", warningText.Sprint(state))
	}
	keys, err := s.controller.ListUserPublicKeys()
	if err != nil {
		return err
	}
	s.printf("Account keys: %d\n", len(keys))
	if key, err := s.exporter.SigningKey(); err == nil {
		s.printf("Backup key: %s %s\n", key.Fingerprint, mutedText.Sprint(key.Identity))
	}
	return nil
}

// startForSeed opens the keyring and refuses to continue if it already has a seed.
func startForSeed(cCtx *cli.Context, s *session) error {
	if err := s.start(cCtx.Context, cCtx); err != nil {
		return err
	}
	if s.controller.State() == keyring.StateReady {
		return fmt.Errorf("keyring already has a seed, run %s first to replace it", highlightText.Sprint("reset"))
	}
	return nil
}

func createSeedAction(cCtx *cli.Context, s *session) error {
	if err := startForSeed(cCtx, s); err != nil {
		return err
	}

	stop := startSpinner("Generating seed phrase...", s.quiet)
	words, err := s.controller.CreateSeedPhrase(cCtx.Context)
	stop()
	if err != nil {
		return err
	}

	s.printf("%s\n\n", warningText.Sprint("Write these words down. They are shown only once."))
	for i, w := range words {
		s.printf("%3d. %s\n", i+1, w)
	}
	s.printf("\n")

	if !cCtx.Bool("skip-quiz") {
		quiz := s.controller.SeedQuiz()
		if quiz == nil {
			return errors.New("no seed phrase to confirm")
		}
		answers := map[int]string{}
		for _, pos := range quiz.Positions() {
			answer, err := s.prompt(fmt.Sprintf("Word #%d: ", pos+1))
			if err != nil {
				return err
			}
			answers[pos] = answer
		}
		if !quiz.Check(answers) {
			return errors.New("seed confirmation failed, nothing was saved")
		}
	}

	if err := s.controller.FinalizeSeedInitialization(cCtx.Context); err != nil {
		return err
	}
	s.printf("%s\n", successText.Sprint("Seed saved and keys derived."))
	return nil
}

func restoreSeedAction(cCtx *cli.Context, s *session) error {
	if err := startForSeed(cCtx, s); err != nil {
		return err
	}

	phrase := cCtx.String("words")
	if phrase == "" {
		var err error
		if phrase, err = s.secret("Seed phrase: "); err != nil {
			return err
		}
	}

	if err := s.controller.RestoreSeedPhrase(strings.Fields(phrase)); err != nil {
		return err
	}
	stop := startSpinner("Deriving keys...", s.quiet)
	err := s.controller.FinalizeSeedInitialization(cCtx.Context)
	stop()
	if err != nil {
		return err
	}
	s.printf("%s\n", successText.Sprint("Seed restored and keys derived."))
	return nil
}

func startAction(cCtx *cli.Context, s *session) error {
	if err := s.start(cCtx.Context, cCtx); err != nil {
		return err
	}
	s.printf("State: %s\n", s.controller.State())
	return nil
}

func addAccountAction(cCtx *cli.Context, s *session) error {
	if err := s.requireReady(cCtx.Context, cCtx); err != nil {
		return err
	}
	account := interfaces.Account{
		Address:     cCtx.String("address"),
		DisplayName: cCtx.String("name"),
	}
	if err := s.controller.AddAccount(cCtx.Context, account); err != nil {
		return err
	}
	s.printf("Added account %s\n", highlightText.Sprint(account.Identity()))
	return nil
}

func keysAction(cCtx *cli.Context, s *session) error {
	if err := s.start(cCtx.Context, cCtx); err != nil {
		return err
	}

	keys := s.engine.ListPublicKeys()
	if !cCtx.Bool("all") {
		var err error
		if keys, err = s.controller.ListUserPublicKeys(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINGERPRINT\tIDENTITY\tROLE\tSECRET\tCREATED")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", k.Fingerprint, k.Identity, k.Role, k.HasSecret, k.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func importKeysAction(cCtx *cli.Context, s *session) error {
	if cCtx.NArg() != 1 {
		return fmt.Errorf("%w: expected one key file", interfaces.ErrMalformedInput)
	}
	data, err := os.ReadFile(cCtx.Args().First())
	if err != nil {
		return err
	}
	if err := s.start(cCtx.Context, cCtx); err != nil {
		return err
	}
	if err := s.engine.ImportKeyBundle(data); err != nil {
		return err
	}
	s.printf("%s\n", successText.Sprint("Keys imported."))
	return nil
}

func exportKeyAction(cCtx *cli.Context, s *session) error {
	if cCtx.NArg() != 1 {
		return fmt.Errorf("%w: expected one key id or fingerprint", interfaces.ErrMalformedInput)
	}
	if err := s.start(cCtx.Context, cCtx); err != nil {
		return err
	}
	armored, err := s.engine.ExportPublicKeyRing(cCtx.Args().First())
	if err != nil {
		return err
	}
	_, err = s.out.Write(armored)
	return err
}

func exportBackupAction(cCtx *cli.Context, s *session) error {
	if cCtx.NArg() != 1 {
		return fmt.Errorf("%w: expected one file to back up", interfaces.ErrMalformedInput)
	}
	data, err := os.ReadFile(cCtx.Args().First())
	if err != nil {
		return err
	}
	if err := s.requireReady(cCtx.Context, cCtx); err != nil {
		return err
	}

	bundle, err := s.exporter.Export(cCtx.Context, data)
	if err != nil {
		return err
	}

	if dir := cCtx.String("out"); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
		for _, f := range bundle.Files() {
			if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o600); err != nil {
				return err
			}
		}
		s.printf("Wrote bundle %s to %s\n", highlightText.Sprint(bundle.Fingerprint), dir)
		return nil
	}

	client, err := s.backupClient(cCtx.Context)
	if err != nil {
		return err
	}
	stop := startSpinner("Uploading backup...", s.quiet)
	resp, err := client.Upload(cCtx.Context, bundle.Files())
	stop()
	if err != nil {
		return err
	}
	s.printf("%s %s\n", successText.Sprint("Uploaded backup, cid:"), resp.CID)
	return nil
}

func changePasswordAction(cCtx *cli.Context, s *session) error {
	oldPassword, err := s.password(cCtx)
	if err != nil {
		return err
	}
	if err := s.controller.Start(cCtx.Context, oldPassword); err != nil {
		return err
	}

	newPassword := cCtx.String("new-password")
	if newPassword == "" {
		if newPassword, err = s.secret("New password: "); err != nil {
			return err
		}
		confirm, err := s.secret("Repeat new password: ")
		if err != nil {
			return err
		}
		if confirm != newPassword {
			return errors.New("passwords do not match")
		}
	}
	if newPassword == "" {
		return fmt.Errorf("%w: empty password", interfaces.ErrMalformedInput)
	}

	if err := s.controller.ChangePassword(oldPassword, newPassword); err != nil {
		return err
	}
	s.printf("%s\n", successText.Sprint("Password changed."))
	return nil
}

func resetAction(cCtx *cli.Context, s *session) error {
	if !cCtx.Bool("yes") {
		answer, err := s.prompt("This deletes the keyring. Type RESET to continue: ")
		if err != nil {
			return err
		}
		if answer != "RESET" {
			return errors.New("reset aborted")
		}
	}
	if err := s.controller.Reset(); err != nil {
		return err
	}
	s.printf("%s\n", successText.Sprint("Keyring reset."))
	return nil
}
