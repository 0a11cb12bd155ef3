package dbstore

import (
	"time"
)

// ChunkSize defines the size of each document chunk (32KB)
const ChunkSize = 32 * 1024

// DocumentModel represents a named document in the database.
// Content is stored separately in chunks, not in this table.
type DocumentModel struct {
	Name      string    `gorm:"primaryKey;size:100"` // Record name, e.g. clipboard-storage
	Size      int64     `gorm:"not null"`            // Total content size in bytes
	SHA256    string    `gorm:"size:64"`             // SHA256 hash of the full content
	CreatedAt time.Time `gorm:"autoCreateTime"`      // GORM managed timestamp
	UpdatedAt time.Time `gorm:"autoUpdateTime"`      // GORM managed timestamp

	// One-to-many relationship with content chunks
	Chunks []DocumentChunkModel `gorm:"foreignKey:DocumentName;references:Name;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for DocumentModel
func (DocumentModel) TableName() string {
	return "documents"
}

// DocumentChunkModel represents a single chunk of document content.
type DocumentChunkModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	DocumentName string `gorm:"size:100;not null;index:idx_document_seq"` // Foreign key to documents
	Sequence     int    `gorm:"not null;index:idx_document_seq"`          // Chunk order (0, 1, 2, ...)
	Data         []byte `gorm:"type:blob;not null"`                       // Chunk data (max 32KB)
}

// TableName returns the table name for DocumentChunkModel
func (DocumentChunkModel) TableName() string {
	return "document_chunks"
}
