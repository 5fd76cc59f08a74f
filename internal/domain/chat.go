package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatSession struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID string    `gorm:"column:tenant_id;not null;index" json:"tenant_id"`

	Title string `gorm:"column:title" json:"title,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_session" }

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ChatMessage stores one question/answer exchange. Feedback is nil until the
// user rates the answer; +1 and -1 are the only accepted values.
type ChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string    `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`

	Message   string         `gorm:"column:message;type:text;not null" json:"message"`
	Response  string         `gorm:"column:response;type:text;not null" json:"response"`
	Citations datatypes.JSON `gorm:"column:citations" json:"citations,omitempty"`

	Feedback *int `gorm:"column:feedback" json:"feedback,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
