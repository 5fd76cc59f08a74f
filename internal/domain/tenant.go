package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Tenant is the unit of isolation. Every document, chat session and vector
// entry belongs to exactly one tenant.
type Tenant struct {
	ID     string `gorm:"type:text;primaryKey" json:"id"`
	Name   string `gorm:"column:name;not null" json:"name"`
	Domain string `gorm:"column:domain" json:"domain,omitempty"`
	APIKey string `gorm:"column:api_key;uniqueIndex;not null" json:"-"`
	Active bool   `gorm:"column:active;not null" json:"active"`

	Features datatypes.JSON `gorm:"column:features" json:"features,omitempty"`

	MaxDocuments    int `gorm:"column:max_documents;not null" json:"max_documents"`
	MaxChatMessages int `gorm:"column:max_chat_messages;not null" json:"max_chat_messages"`
	MaxStorageMB    int `gorm:"column:max_storage_mb;not null" json:"max_storage_mb"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenant" }
