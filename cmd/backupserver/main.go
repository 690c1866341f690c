// Command backupserver accepts signed PGP backup bundles over HTTP and stores
// them in the configured blob storage locations.
package main

import (
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ruteri/pgp-seed-backup/backup"
	"github.com/ruteri/pgp-seed-backup/cidindex"
	"github.com/ruteri/pgp-seed-backup/cmd/flags"
	"github.com/ruteri/pgp-seed-backup/httpserver"
	"github.com/ruteri/pgp-seed-backup/interfaces"
	"github.com/ruteri/pgp-seed-backup/pgpengine"
	"github.com/ruteri/pgp-seed-backup/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "listen-addr",
		Value:   "127.0.0.1:8080",
		Usage:   "address to listen on for API",
		EnvVars: []string{"LISTEN_ADDR"},
	},
	&cli.StringSliceFlag{
		Name:     "storage",
		Usage:    "storage location URI (file://, s3://, ipfs://, vault://), repeatable",
		EnvVars:  []string{"STORAGE_URIS"},
		Required: true,
	},
	&cli.StringFlag{
		Name:    "cid-index",
		Usage:   "sqlite DSN of the content identifier index; empty keeps .cid objects in storage",
		EnvVars: []string{"CID_INDEX_DSN"},
	},
	&cli.StringFlag{
		Name:    "backup-identity",
		Usage:   "identity (email) that must sign every backup bundle",
		EnvVars: []string{"BACKUP_IDENTITY"},
		Value:   "backup@localhost",
	},
	flags.LogServiceFlagFn("backup-server"),
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	app := &cli.App{
		Name:  "backup-server",
		Usage: "Accept and store signed PGP backup bundles",
		Flags: append(append(serverFlags, flags.CommonFlags...), flags.ServerFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))

			var locations []interfaces.StorageBackendLocation
			for _, uri := range cCtx.StringSlice("storage") {
				loc, err := interfaces.NewStorageBackendLocation(strings.TrimSpace(uri))
				if err != nil {
					logger.Error("Invalid storage location", "err", err)
					return err
				}
				locations = append(locations, loc)
			}

			store, err := storage.NewBlobStoreFactory(logger).CreateMultiStore(locations)
			if err != nil {
				logger.Error("Failed to create storage", "err", err)
				return err
			}

			cids, closer, err := contentIDMap(cCtx.String("cid-index"), store, logger)
			if err != nil {
				logger.Error("Failed to open content identifier index", "err", err)
				return err
			}
			defer closer.Close()

			authorizer := backup.NewAuthorizer(store, pgpengine.Verifier{}, cCtx.String("backup-identity"), logger)
			acceptor := backup.NewAcceptor(authorizer, store, cids, logger)
			limiter := httpserver.NewUploadLimiter(httpserver.UploadLimits{
				ClientRPS:        cfg.UploadClientRPS,
				ClientBurst:      cfg.UploadClientBurst,
				FingerprintRPS:   cfg.UploadRPS,
				FingerprintBurst: cfg.UploadBurst,
			})
			handler := httpserver.NewHandler(acceptor, store, cids, limiter, logger)

			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server",
				slog.String("storage", store.LocationURI()),
				slog.String("backupIdentity", cCtx.String("backup-identity")))
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func contentIDMap(dsn string, store interfaces.BlobStore, logger *slog.Logger) (interfaces.ContentIDMap, io.Closer, error) {
	if dsn == "" {
		return backup.NewBlobCIDMap(store), nopCloser{}, nil
	}
	idx, err := cidindex.Open(dsn, logger)
	if err != nil {
		return nil, nil, err
	}
	return idx, idx, nil
}
