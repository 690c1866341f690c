package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// VaultBackend implements a blob store using the HashiCorp Vault KV v2
// secrets engine. Each object is one secret holding its base64 content.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// VaultOptions carries authentication and TLS settings for a Vault backend.
// An empty Token falls back to VAULT_TOKEN from the environment.
type VaultOptions struct {
	Token      string
	CACert     string
	ClientCert string
	ClientKey  string
}

// NewVaultBackend creates a new Vault storage backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "backups")
func NewVaultBackend(address, mountPath, dataPath string, opts VaultOptions, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	if opts.CACert != "" || opts.ClientCert != "" {
		err := config.ConfigureTLS(&api.TLSConfig{
			CACert:     opts.CACert,
			ClientCert: opts.ClientCert,
			ClientKey:  opts.ClientKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if opts.Token != "" {
		client.SetToken(opts.Token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

func (b *VaultBackend) secretPath(name string) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/data/%s", b.mountPath, name)
	}
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, name)
}

func (b *VaultBackend) read(ctx context.Context, name string) (map[string]interface{}, error) {
	secret, err := b.client.Logical().ReadWithContext(ctx, b.secretPath(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	// Deleted KV v2 versions come back with data set to nil.
	data, _ := secret.Data["data"].(map[string]interface{})
	return data, nil
}

func (b *VaultBackend) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	data, err := b.read(ctx, name)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// Download returns ErrContentNotFound if the secret doesn't exist.
func (b *VaultBackend) Download(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := b.read(ctx, name)
	if err != nil {
		b.log.Error("Failed to read from Vault", slog.String("name", name), "err", err)
		return nil, err
	}
	if data == nil {
		return nil, interfaces.ErrContentNotFound
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}

	b.log.Debug("Fetched content from Vault", slog.String("name", name), slog.Int("size", len(decoded)))
	return decoded, nil
}

// Upload writes a new KV version holding the data and its content identifier.
func (b *VaultBackend) Upload(ctx context.Context, name string, data []byte) (interfaces.ContentID, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	id, err := ComputeCID(data)
	if err != nil {
		return "", err
	}

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(data),
			"cid":     id.String(),
		},
	}

	_, err = b.client.Logical().WriteWithContext(ctx, b.secretPath(name), secretData)
	if err != nil {
		b.log.Error("Failed to write to Vault", slog.String("name", name), "err", err)
		return "", fmt.Errorf("%w: %w", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in Vault", slog.String("name", name), slog.String("cid", id.String()))
	return id, nil
}

// Available uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}
