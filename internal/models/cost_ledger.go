package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CostKind string

const (
	CostKindImage CostKind = "image"
	CostKindText  CostKind = "text"
)

// CostLedgerEntry is one billed unit of external API usage. The table is
// append-only: the monthly SUM over it is the spend state, there is no
// separate counter to keep in sync.
type CostLedgerEntry struct {
	ID               string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	OwnerType        string    `gorm:"type:varchar(20);not null" json:"owner_type"`
	OwnerID          string    `gorm:"index;type:varchar(36);not null" json:"owner_id"`
	Provider         string    `gorm:"type:varchar(50);not null" json:"provider"`
	Kind             CostKind  `gorm:"type:varchar(10);not null" json:"kind"`
	Model            string    `gorm:"type:varchar(100)" json:"model"`
	Units            int       `gorm:"default:1" json:"units"`
	CostUSDEstimated float64   `gorm:"type:decimal(12,6);not null" json:"cost_usd_estimated"`
	RequestID        string    `gorm:"type:varchar(100)" json:"request_id"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (CostLedgerEntry) TableName() string {
	return "cost_ledger_entries"
}

func (e *CostLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
