package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is the relational record of an uploaded file. Chunk text lives in
// the vector store payloads, not in a relational table.
type Document struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID string    `gorm:"column:tenant_id;not null;index" json:"tenant_id"`

	Filename string `gorm:"column:filename;not null" json:"filename"`
	FileType string `gorm:"column:file_type;not null" json:"file_type"`
	Title    string `gorm:"column:title" json:"title,omitempty"`
	FilePath string `gorm:"column:file_path;not null" json:"-"`
	FileSize int64  `gorm:"column:file_size;not null" json:"file_size"`

	// Processed means text extraction and chunking completed.
	// Indexed means the chunks are searchable in the vector store.
	// A processed but unindexed document exists relationally yet never
	// appears in retrieval results.
	Processed  bool `gorm:"column:processed;not null" json:"processed"`
	Indexed    bool `gorm:"column:indexed;not null" json:"indexed"`
	ChunkCount int  `gorm:"column:chunk_count;not null" json:"chunk_count"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
