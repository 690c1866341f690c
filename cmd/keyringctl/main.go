// Command keyringctl manages a seed-derived PGP keyring: it creates or
// restores the seed phrase, derives account keys and exports signed backups
// to a backup server.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ruteri/pgp-seed-backup/cmd/flags"
	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/urfave/cli/v2"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "keyringctl.yaml",
			Usage:   "YAML configuration file",
			EnvVars: []string{"KEYRINGCTL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "directory holding the encrypted keyring",
			EnvVars: []string{"KEYRINGCTL_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "keyring password; prompted for when unset",
			EnvVars: []string{"KEYRINGCTL_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "server",
			Usage:   "backup server URL",
			EnvVars: []string{"KEYRINGCTL_SERVER"},
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "do not show progress spinners",
		},
		flags.LogServiceFlagFn("keyringctl"),
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "keyringctl",
		Usage: "Manage a seed-derived PGP keyring and its backups",
		Flags: append(globalFlags(), flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the keyring state",
				Action: withSession(statusAction),
			},
			{
				Name:  "create-seed",
				Usage: "Generate a new seed phrase and derive the keyring from it",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "skip-quiz", Usage: "do not ask to confirm words of the phrase"},
				},
				Action: withSession(createSeedAction),
			},
			{
				Name:  "restore-seed",
				Usage: "Restore the keyring from an existing seed phrase",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "words", Usage: "space separated seed phrase; prompted for when unset"},
				},
				Action: withSession(restoreSeedAction),
			},
			{
				Name:   "start",
				Usage:  "Open the keyring and repair any missing derived keys",
				Action: withSession(startAction),
			},
			{
				Name:  "add-account",
				Usage: "Add an account and derive its key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Required: true, Usage: "account email address"},
					&cli.StringFlag{Name: "name", Usage: "display name"},
				},
				Action: withSession(addAccountAction),
			},
			{
				Name:  "keys",
				Usage: "List keys",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "include reserved keys"},
				},
				Action: withSession(keysAction),
			},
			{
				Name:      "import-keys",
				Usage:     "Import an armored public or private key bundle",
				ArgsUsage: "FILE",
				Action:    withSession(importKeysAction),
			},
			{
				Name:      "export-key",
				Usage:     "Print the armored public key for a key id or fingerprint",
				ArgsUsage: "KEYID",
				Action:    withSession(exportKeyAction),
			},
			{
				Name:      "export-backup",
				Usage:     "Sign a file with the backup key and upload the bundle",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "write the bundle to this directory instead of uploading"},
				},
				Action: withSession(exportBackupAction),
			},
			{
				Name:  "change-password",
				Usage: "Re-encrypt the keyring under a new password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "new-password", EnvVars: []string{"KEYRINGCTL_NEW_PASSWORD"}, Usage: "new password; prompted for when unset"},
				},
				Action: withSession(changePasswordAction),
			},
			{
				Name:  "reset",
				Usage: "Delete the keyring and forget the seed",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "do not ask for confirmation"},
				},
				Action: withSession(resetAction),
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorText.Sprint("Error:"), err)
		if errors.Is(err, interfaces.ErrBadCredential) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
