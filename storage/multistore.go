package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/pgp-seed-backup/interfaces"
)

// MultiBlobStore implements interfaces.BlobStore over several backends.
// Writes go to every available backend, reads use the first backend that
// has the object.
type MultiBlobStore struct {
	backends []interfaces.BlobStore
	log      *slog.Logger
}

// NewMultiBlobStore creates a new multi-backend blob store with fallback
func NewMultiBlobStore(backends []interfaces.BlobStore, logger *slog.Logger) *MultiBlobStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiBlobStore{
		backends: backends,
		log:      logger,
	}
}

// Exists reports true if any available backend holds the object. An error is
// returned only if no backend could answer.
func (m *MultiBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	var errs []error
	answered := false

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		ok, err := backend.Exists(ctx, name)
		if err != nil {
			if errors.Is(err, interfaces.ErrMalformedInput) {
				return false, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		if ok {
			return true, nil
		}
		answered = true
	}

	if answered {
		return false, nil
	}
	if len(errs) == 0 {
		return false, fmt.Errorf("%w: no available backends", interfaces.ErrBackendUnavailable)
	}
	return false, fmt.Errorf("all backends failed to stat %s: %w", name, errors.Join(errs...))
}

// Download returns the object from the first backend that has it.
func (m *MultiBlobStore) Download(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name))
			continue
		}

		data, err := backend.Download(ctx, name)
		if err == nil {
			m.log.Debug("Fetched content",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}
		if errors.Is(err, interfaces.ErrMalformedInput) {
			return nil, err
		}
		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("name", name),
			"err", err)
	}

	if len(errs) == 0 && notFound > 0 {
		return nil, interfaces.ErrContentNotFound
	}

	m.log.Error("All backends failed to fetch content",
		slog.String("name", name),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no available backends", interfaces.ErrBackendUnavailable)
	}
	return nil, fmt.Errorf("all backends failed to fetch %s: %w", name, errors.Join(errs...))
}

// Upload saves data to all available backends and returns the identifier
// reported by the first successful one.
func (m *MultiBlobStore) Upload(ctx context.Context, name string, data []byte) (interfaces.ContentID, error) {
	start := time.Now()
	var result interfaces.ContentID
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		id, err := backend.Upload(ctx, name, data)
		if err != nil {
			if errors.Is(err, interfaces.ErrMalformedInput) {
				return "", err
			}
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				slog.String("name", name),
				"err", err)
			continue
		}

		if result == "" {
			result = id
		} else if result != id {
			m.log.Warn("Inconsistent content identifiers from backends",
				slog.String("backend_name", backend.Name()),
				slog.String("expected_cid", result.String()),
				slog.String("actual_cid", id.String()))
		}
	}

	if result == "" {
		m.log.Error("All backends failed to store data",
			slog.String("name", name),
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return "", fmt.Errorf("%w: no available backends", interfaces.ErrBackendUnavailable)
		}
		return "", fmt.Errorf("all backends failed to store %s: %w", name, errors.Join(errs...))
	}

	m.log.Info("Stored content",
		slog.String("name", name),
		slog.String("cid", result.String()),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// Available checks if any backend is available
func (m *MultiBlobStore) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiBlobStore) Name() string {
	return "multi-storage"
}

func (m *MultiBlobStore) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
