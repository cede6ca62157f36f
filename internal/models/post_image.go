package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostImage is one generated asset. A row exists only after the binary was
// durably uploaded; StorageKey always resolves to exactly one object.
type PostImage struct {
	ID                string     `gorm:"primarykey;type:varchar(36)" json:"id"`
	PostID            string     `gorm:"index;type:varchar(36);not null" json:"post_id"`
	BatchID           string     `gorm:"index;type:varchar(36);not null" json:"batch_id"`
	Stage             BatchStage `gorm:"type:varchar(20);index;not null" json:"stage"`
	StorageKey        string     `gorm:"type:varchar(500);not null" json:"storage_key"`
	Selected          bool       `gorm:"default:false" json:"selected"`
	SourceCandidateID *string    `gorm:"type:varchar(36)" json:"source_candidate_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (PostImage) TableName() string {
	return "post_images"
}

func (i *PostImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
