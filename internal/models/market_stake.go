package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketStake mirrors one participant's per-option stake vector in one
// market, plus their claim record once they have settled.
type MarketStake struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID string `gorm:"type:text;not null;uniqueIndex:uidx_stake_market_user;index"`
	UserID   string `gorm:"type:text;not null;uniqueIndex:uidx_stake_market_user;index"`

	Amounts datatypes.JSON  `gorm:"type:jsonb;not null"`
	Total   decimal.Decimal `gorm:"type:numeric(40,0);not null;default:0"`

	Claimed       bool             `gorm:"not null;default:false"`
	ClaimedAmount *decimal.Decimal `gorm:"type:numeric(40,0)"`
	ClaimedAt     *time.Time       `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketStake) TableName() string {
	return "market_stakes"
}
