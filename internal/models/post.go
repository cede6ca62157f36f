package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus tracks a post through the content pipeline.
type PostStatus string

const (
	PostStatusPlanned       PostStatus = "planned"
	PostStatusDraft         PostStatus = "draft"
	PostStatusImagesPending PostStatus = "images_pending"
	PostStatusReady         PostStatus = "ready"
	PostStatusExported      PostStatus = "exported"
)

// Post is one scheduled content slot for a business.
type Post struct {
	ID            string     `gorm:"primarykey;type:varchar(36)" json:"id"`
	BusinessID    string     `gorm:"index;type:varchar(36);not null" json:"business_id"`
	Platform      string     `gorm:"type:varchar(50)" json:"platform"`
	CaptionText   *string    `gorm:"type:text" json:"caption_text"`
	ImagePrompt   string     `gorm:"type:text" json:"image_prompt"`
	Status        PostStatus `gorm:"type:varchar(30);index;default:'planned'" json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// Caption returns the trimmed caption text, empty when unset.
func (p *Post) Caption() string {
	if p.CaptionText == nil {
		return ""
	}
	return strings.TrimSpace(*p.CaptionText)
}
