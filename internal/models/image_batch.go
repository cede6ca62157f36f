package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BatchStage identifies which pipeline stage a batch ran.
type BatchStage string

const (
	BatchStageCandidate BatchStage = "candidate"
	BatchStageFinal     BatchStage = "final"
)

// BatchStatus is the run outcome of a batch. A batch is "succeeded" when it
// ran to completion, even if some of its units failed.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
)

// ImageBatch is one invocation of the candidate or finalize stage for a post.
// Immutable once succeeded or failed.
type ImageBatch struct {
	ID             string         `gorm:"primarykey;type:varchar(36)" json:"id"`
	PostID         string         `gorm:"index;type:varchar(36);not null" json:"post_id"`
	Stage          BatchStage     `gorm:"type:varchar(20);index;not null" json:"stage"`
	RequestedCount int            `json:"requested_count"`
	Quality        string         `gorm:"type:varchar(10)" json:"quality"`
	Status         BatchStatus    `gorm:"type:varchar(20);default:'running'" json:"status"`
	Params         datatypes.JSON `gorm:"type:jsonb" json:"params" swaggertype:"object"`
	ErrorLog       string         `gorm:"type:text" json:"error_log"`
	CompletedAt    *time.Time     `json:"completed_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (ImageBatch) TableName() string {
	return "image_batches"
}

func (b *ImageBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
