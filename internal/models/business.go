package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business owns posts. Its profile fields are the typed context handed to the
// prompt generation collaborator.
type Business struct {
	ID        string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Category  string    `gorm:"type:varchar(100)" json:"category"`
	City      string    `gorm:"type:varchar(100)" json:"city"`
	State     string    `gorm:"type:varchar(100)" json:"state"`
	Language  string    `gorm:"type:varchar(10);default:'en'" json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Business) TableName() string {
	return "businesses"
}

func (b *Business) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
