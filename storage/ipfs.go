package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// IPFSBackend implements a blob store on top of an IPFS node's mutable file
// system. Objects are written as files under rootDir and their IPFS CID is
// returned from Upload.
type IPFSBackend struct {
	shell       *shell.Shell
	addr        ma.Multiaddr
	rootDir     string
	timeout     time.Duration
	log         *slog.Logger
	locationURI string
}

// IPFSAPIAddr converts a host and port of an IPFS API endpoint into a multiaddr.
func IPFSAPIAddr(host, port string) (ma.Multiaddr, error) {
	proto := "dns"
	if ip := net.ParseIP(host); ip != nil {
		proto = "ip4"
		if ip.To4() == nil {
			proto = "ip6"
		}
	}
	addr, err := ma.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%s", proto, host, port))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid IPFS API address: %w", interfaces.ErrInvalidLocationURI, err)
	}
	return addr, nil
}

// NewIPFSBackend creates a new IPFS storage backend connected to the API
// endpoint at host:port. Objects are stored below rootDir in MFS.
func NewIPFSBackend(host, port, rootDir string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	addr, err := IPFSAPIAddr(host, port)
	if err != nil {
		return nil, err
	}

	rootDir = path.Clean("/" + strings.Trim(rootDir, "/"))
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sh := shell.NewShell(addr.String())
	sh.SetTimeout(timeout)

	return &IPFSBackend{
		shell:       sh,
		addr:        addr,
		rootDir:     rootDir,
		timeout:     timeout,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", net.JoinHostPort(host, port), rootDir, timeout),
	}, nil
}

func (b *IPFSBackend) filePath(name string) string {
	return path.Join(b.rootDir, name)
}

func isMFSNotFound(err error) bool {
	return strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "no link named")
}

func (b *IPFSBackend) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, err := b.shell.FilesStat(ctx, b.filePath(name))
	if err != nil {
		if isMFSNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", interfaces.ErrBackendUnavailable, err)
	}
	return true, nil
}

// Download returns ErrContentNotFound if the file doesn't exist in MFS.
func (b *IPFSBackend) Download(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	start := time.Now()
	p := b.filePath(name)

	reader, err := b.shell.FilesRead(ctx, p)
	if err != nil {
		if isMFSNotFound(err) {
			return nil, interfaces.ErrContentNotFound
		}
		b.log.Error("Failed to fetch data from IPFS",
			slog.String("path", p),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %w", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		if isMFSNotFound(err) {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("path", p),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Upload writes data to MFS, replacing any existing file, and returns the
// CID the node assigned to it.
func (b *IPFSBackend) Upload(ctx context.Context, name string, data []byte) (interfaces.ContentID, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	p := b.filePath(name)

	err := b.shell.FilesWrite(ctx, p, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
		shell.FilesWrite.RawLeaves(true),
		shell.FilesWrite.CidVersion(1))
	if err != nil {
		return "", fmt.Errorf("%w: failed to write to IPFS: %w", interfaces.ErrBackendUnavailable, err)
	}

	stat, err := b.shell.FilesStat(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: failed to stat written file: %w", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("path", p),
		slog.String("cid", stat.Hash))

	return interfaces.ContentID(stat.Hash), nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s", b.addr.String())
}

func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}
