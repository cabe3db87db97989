package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WagerBatch is the audit journal of one multi-market batch execution:
// the requested orders, the per-order outcomes and the refunded
// remainder. It has no lifecycle of its own; the durable effect of a
// batch lives in the markets it touched.
type WagerBatch struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Depositor string `gorm:"type:text;not null;index"`

	TotalDeposit decimal.Decimal `gorm:"type:numeric(40,0);not null"`
	Allocated    decimal.Decimal `gorm:"type:numeric(40,0);not null"`
	Refunded     decimal.Decimal `gorm:"type:numeric(40,0);not null"`

	Orders  datatypes.JSON `gorm:"type:jsonb;not null"`
	Results datatypes.JSON `gorm:"type:jsonb;not null"`

	Succeeded int `gorm:"not null"`
	Failed    int `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (WagerBatch) TableName() string {
	return "wager_batches"
}
