package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/pkg/metrics"
)

type identityRow struct {
	Username  string                   `gorm:"primaryKey;size:190"`
	Name      string                   `gorm:"size:190"`
	AvatarURL string                   `gorm:"size:512"`
	Email     string                   `gorm:"size:190"`
	Accounts  map[string]model.Account `gorm:"serializer:json"`
	LastReset time.Time
}

func (identityRow) TableName() string { return "identities" }

type statsRow struct {
	Username string              `gorm:"primaryKey;size:190"`
	Platform string              `gorm:"primaryKey;size:32"`
	Stats    model.ProviderStats `gorm:"serializer:json"`
}

func (statsRow) TableName() string { return "provider_stats" }

type scoreRow struct {
	Username string            `gorm:"primaryKey;size:190"`
	Record   model.ScoreRecord `gorm:"serializer:json"`
}

func (scoreRow) TableName() string { return "score_records" }

type resetRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Date          time.Time `gorm:"index"`
	UsersAffected int
	ExecutedBy    string `gorm:"size:190"`
}

func (resetRow) TableName() string { return "reset_history" }

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the Postgres database and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&identityRow{}, &statsRow{}, &scoreRow{}, &resetRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// UpsertIdentity creates or replaces one user's identity record.
func (s *GormStore) UpsertIdentity(ctx context.Context, id model.Identity) error {
	row := identityRow{
		Username:  id.Username,
		Name:      id.Name,
		AvatarURL: id.AvatarURL,
		Email:     id.Email,
		Accounts:  id.Accounts,
		LastReset: id.LastReset,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		metrics.RecordStoreWriteError("upsert_identity")
		return fmt.Errorf("upsert identity: %w", err)
	}
	metrics.RecordStoreWrite("upsert_identity")
	return nil
}

// Identity returns one user's identity or ErrNotFound.
func (s *GormStore) Identity(ctx context.Context, username string) (model.Identity, error) {
	var row identityRow
	err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return rowToIdentity(row), nil
}

// Identities returns every registered identity.
func (s *GormStore) Identities(ctx context.Context) ([]model.Identity, error) {
	var rows []identityRow
	if err := s.db.WithContext(ctx).Order("username").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	out := make([]model.Identity, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToIdentity(row))
	}
	return out, nil
}

// SaveProviderStats replaces one (user, platform) stats record.
func (s *GormStore) SaveProviderStats(ctx context.Context, username, platform string, stats model.ProviderStats) error {
	row := statsRow{Username: username, Platform: platform, Stats: stats}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		metrics.RecordStoreWriteError("save_provider_stats")
		return fmt.Errorf("save provider stats: %w", err)
	}
	metrics.RecordStoreWrite("save_provider_stats")
	return nil
}

// ProviderStats returns a user's stats keyed by platform.
func (s *GormStore) ProviderStats(ctx context.Context, username string) (map[string]model.ProviderStats, error) {
	var rows []statsRow
	if err := s.db.WithContext(ctx).Find(&rows, "username = ?", username).Error; err != nil {
		return nil, fmt.Errorf("load provider stats: %w", err)
	}
	out := make(map[string]model.ProviderStats, len(rows))
	for _, row := range rows {
		out[row.Platform] = row.Stats
	}
	return out, nil
}

// SaveScore replaces one user's score record.
func (s *GormStore) SaveScore(ctx context.Context, username string, rec model.ScoreRecord) error {
	row := scoreRow{Username: username, Record: rec}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		metrics.RecordStoreWriteError("save_score")
		return fmt.Errorf("save score: %w", err)
	}
	metrics.RecordStoreWrite("save_score")
	return nil
}

// Scores returns every user's latest score record.
func (s *GormStore) Scores(ctx context.Context) (map[string]model.ScoreRecord, error) {
	var rows []scoreRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	out := make(map[string]model.ScoreRecord, len(rows))
	for _, row := range rows {
		out[row.Username] = row.Record
	}
	return out, nil
}

// ZeroStats wipes all stats and scores in one transaction while
// preserving identities.
func (s *GormStore) ZeroStats(ctx context.Context, at time.Time) (int, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&identityRow{}).Count(&affected).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&statsRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&scoreRow{}).Error; err != nil {
			return err
		}
		return tx.Model(&identityRow{}).Where("1 = 1").Update("last_reset", at).Error
	})
	if err != nil {
		metrics.RecordStoreWriteError("zero_stats")
		return 0, fmt.Errorf("zero stats: %w", err)
	}
	metrics.RecordStoreWrite("zero_stats")
	return int(affected), nil
}

// AppendReset appends one immutable reset audit entry.
func (s *GormStore) AppendReset(ctx context.Context, entry model.ResetEntry) error {
	row := resetRow{
		ID:            entry.ID,
		Date:          entry.Date,
		UsersAffected: entry.UsersAffected,
		ExecutedBy:    entry.ExecutedBy,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		metrics.RecordStoreWriteError("append_reset")
		return fmt.Errorf("append reset: %w", err)
	}
	metrics.RecordStoreWrite("append_reset")
	return nil
}

// ResetHistory returns the reset audit log, newest first.
func (s *GormStore) ResetHistory(ctx context.Context) ([]model.ResetEntry, error) {
	var rows []resetRow
	if err := s.db.WithContext(ctx).Order("date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reset history: %w", err)
	}
	out := make([]model.ResetEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.ResetEntry{
			ID:            row.ID,
			Date:          row.Date,
			UsersAffected: row.UsersAffected,
			ExecutedBy:    row.ExecutedBy,
		})
	}
	return out, nil
}

// LastResetDate returns the most recent reset instant or the zero time.
func (s *GormStore) LastResetDate(ctx context.Context) (time.Time, error) {
	var row resetRow
	err := s.db.WithContext(ctx).Order("date DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load last reset: %w", err)
	}
	return row.Date, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowToIdentity(row identityRow) model.Identity {
	return model.Identity{
		Username:  row.Username,
		Name:      row.Name,
		AvatarURL: row.AvatarURL,
		Email:     row.Email,
		Accounts:  row.Accounts,
		LastReset: row.LastReset,
	}
}
