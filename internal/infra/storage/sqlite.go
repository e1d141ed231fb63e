package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crypto_scalper/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Order statuses that exist only in the journal.
const (
	StatusOpen    = "Open"
	StatusExpired = "Expired"
)

// Storage persists the order and fill journal
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite journal at path.
// ":memory:" gives a throwaway database.
func NewStorage(path string) (*Storage, error) {
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// Auto Migration
	if err := db.AutoMigrate(&domain.OrderRecord{}, &domain.FillRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Order Operations
// ======================================================================================

// UpsertOrder creates or replaces an order record
func (s *Storage) UpsertOrder(rec *domain.OrderRecord) error {
	return s.db.Save(rec).Error
}

// CloseOrder moves an order to a final status. The first close wins; later
// reports for the same order are ignored. Unknown orders get a minimal record.
func (s *Storage) CloseOrder(orderID, symbol, status, reason string, at time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var rec domain.OrderRecord
		err := tx.First(&rec, "order_id = ?", orderID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = domain.OrderRecord{OrderID: orderID, Symbol: symbol}
		case err != nil:
			return err
		case rec.Status != StatusOpen && rec.Status != StatusExpired:
			return nil
		case rec.Status == StatusExpired && status == StatusExpired:
			return nil
		}

		// Expired is local; the exchange's final word replaces it.
		if rec.Status == StatusExpired && reason == "" {
			reason = rec.Reason
		}
		rec.Status = status
		rec.Reason = reason
		rec.ClosedAt = at
		rec.UpdatedAt = at
		return tx.Save(&rec).Error
	})
}

// GetOrder retrieves an order by id
func (s *Storage) GetOrder(orderID string) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	err := s.db.First(&rec, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &rec, err
}

// OrdersByStatus lists orders in one status, newest first
func (s *Storage) OrdersByStatus(status string) ([]domain.OrderRecord, error) {
	var recs []domain.OrderRecord
	err := s.db.Where("status = ?", status).Order("placed_at desc").Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Fill Operations
// ======================================================================================

// InsertFill appends one fill
func (s *Storage) InsertFill(rec *domain.FillRecord) error {
	return s.db.Create(rec).Error
}

// RecentFills returns up to limit fills, newest first
func (s *Storage) RecentFills(symbol string, limit int) ([]domain.FillRecord, error) {
	var recs []domain.FillRecord
	err := s.db.Where("symbol = ?", symbol).Order("filled_at desc, id desc").Limit(limit).Find(&recs).Error
	return recs, err
}

// RealizedPnL sums the PnL of every fill on the symbol
func (s *Storage) RealizedPnL(symbol string) (float64, error) {
	var total float64
	err := s.db.Model(&domain.FillRecord{}).
		Where("symbol = ?", symbol).
		Select("COALESCE(SUM(pnl), 0)").
		Scan(&total).Error
	return total, err
}
