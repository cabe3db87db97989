package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Market is the persisted mirror of one settlement ledger. The in-memory
// engine is the source of truth; these rows are written behind every
// committed mutation and read back once at boot to rebuild the arena.
type Market struct {
	ID              string          `gorm:"primaryKey;type:text"`
	Creator         string          `gorm:"type:text;not null;index"`
	Question        string          `gorm:"type:text;not null"`
	Options         datatypes.JSON  `gorm:"type:jsonb;not null"`
	CollateralAsset string          `gorm:"type:text;not null"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
	EndTime         time.Time       `gorm:"type:timestamptz;not null;index"`
	BettingOpen     bool            `gorm:"not null;default:true"`
	StakeByOption   datatypes.JSON  `gorm:"type:jsonb;not null"`
	TotalPool       decimal.Decimal `gorm:"type:numeric(40,0);not null;default:0"`
	WinningOptions  datatypes.JSON  `gorm:"type:jsonb"`
	MarketCreatedAt time.Time       `gorm:"type:timestamptz;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Market) TableName() string {
	return "markets"
}
