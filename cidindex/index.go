// Package cidindex persists the fingerprint to content identifier mapping of
// accepted backups in a SQL database.
package cidindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/pgp-seed-backup/backup"
	"github.com/ruteri/pgp-seed-backup/interfaces"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// cidRecord is the gorm model of one mapping.
type cidRecord struct {
	Fingerprint string    `gorm:"type:varchar(128);primaryKey"`
	CID         string    `gorm:"column:cid;type:varchar(128);not null"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"`
}

func (cidRecord) TableName() string {
	return "backup_cids"
}

// Index implements interfaces.ContentIDMap on top of gorm.
type Index struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to the sqlite database at dsn and migrates the schema.
// ":memory:" gives a private in-memory index.
func Open(dsn string, log *slog.Logger) (*Index, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open cid index: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, and each connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return New(db, log)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Index, error) {
	if err := db.AutoMigrate(&cidRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate cid index: %w", err)
	}
	return &Index{db: db, log: log}, nil
}

// GetFileCid returns ErrContentNotFound for unknown fingerprints.
func (i *Index) GetFileCid(ctx context.Context, fingerprint string) (interfaces.ContentID, error) {
	if !backup.ValidFingerprint(fingerprint) {
		return "", fmt.Errorf("%w: invalid fingerprint %q", interfaces.ErrMalformedInput, fingerprint)
	}

	var record cidRecord
	err := i.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", interfaces.ErrContentNotFound
	}
	if err != nil {
		i.log.Error("failed to look up cid", "err", err, slog.String("fingerprint", fingerprint))
		return "", fmt.Errorf("could not read cid index: %w", err)
	}
	return interfaces.ContentID(record.CID), nil
}

// SaveFileCid inserts or replaces the mapping for fingerprint.
func (i *Index) SaveFileCid(ctx context.Context, fingerprint string, cid interfaces.ContentID) error {
	if !backup.ValidFingerprint(fingerprint) {
		return fmt.Errorf("%w: invalid fingerprint %q", interfaces.ErrMalformedInput, fingerprint)
	}
	if cid == "" {
		return fmt.Errorf("%w: empty content identifier", interfaces.ErrMalformedInput)
	}

	record := cidRecord{Fingerprint: fingerprint, CID: cid.String()}
	err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"cid", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		i.log.Error("failed to save cid", "err", err, slog.String("fingerprint", fingerprint))
		return fmt.Errorf("could not write cid index: %w", err)
	}

	i.log.Debug("saved backup cid", slog.String("fingerprint", fingerprint), slog.String("cid", cid.String()))
	return nil
}

// Close releases the underlying database connection.
func (i *Index) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
