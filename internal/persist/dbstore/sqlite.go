// Package dbstore is a SQLite-backed persist.Store. The document is split
// into fixed-size chunks and checked against its SHA256 on load.
package dbstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yiblet/cliphist/internal/persist"
)

// FileName is the default database file name inside the data directory.
const FileName = "cliphist.db"

var _ persist.Store = (*SQLiteStore)(nil)

// SQLiteStore stores one named document in SQLite.
type SQLiteStore struct {
	db     *gorm.DB
	dbPath string
	name   string
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates
// the schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints in SQLite
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run auto-migration for all models
	if err := db.AutoMigrate(&DocumentModel{}, &DocumentChunkModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		name:   persist.RecordName,
	}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Load reassembles the document from its chunks.
func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var doc DocumentModel
	err := s.db.WithContext(ctx).
		Preload("Chunks", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		First(&doc, "name = ?", s.name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(int(doc.Size))
	for _, chunk := range doc.Chunks {
		buf.Write(chunk.Data)
	}
	data := buf.Bytes()

	if int64(len(data)) != doc.Size {
		return nil, fmt.Errorf("document size mismatch: got %d bytes, want %d", len(data), doc.Size)
	}
	if sum := checksum(data); sum != doc.SHA256 {
		return nil, fmt.Errorf("document checksum mismatch: got %s, want %s", sum, doc.SHA256)
	}
	return data, nil
}

// Save replaces the document and its chunks in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_name = ?", s.name).Delete(&DocumentChunkModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}

		doc := DocumentModel{
			Name:   s.name,
			Size:   int64(len(data)),
			SHA256: checksum(data),
		}
		upsert := clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"size", "sha256", "updated_at"}),
		}
		if err := tx.Clauses(upsert).Create(&doc).Error; err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}

		for seq, start := 0, 0; start < len(data); seq, start = seq+1, start+ChunkSize {
			end := min(start+ChunkSize, len(data))
			chunk := &DocumentChunkModel{
				DocumentName: s.name,
				Sequence:     seq,
				Data:         append([]byte(nil), data[start:end]...), // Copy slice
			}
			if err := tx.Create(chunk).Error; err != nil {
				return fmt.Errorf("failed to create chunk: %w", err)
			}
		}
		return nil
	})
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
