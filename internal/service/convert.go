package service

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"paripool/internal/engine"
	"paripool/internal/models"
)

// MarketView is the wire shape of a market snapshot, shared by the HTTP
// handlers and the event stream.
type MarketView struct {
	ID              string            `json:"id"`
	Creator         string            `json:"creator"`
	Question        string            `json:"question"`
	Options         []string          `json:"options"`
	CollateralAsset string            `json:"collateral_asset"`
	Status          string            `json:"status"`
	EndTime         time.Time         `json:"end_time"`
	CreatedAt       time.Time         `json:"created_at"`
	StakeByOption   []decimal.Decimal `json:"stake_by_option"`
	TotalPool       decimal.Decimal   `json:"total_pool"`
	WinningOptions  []bool            `json:"winning_options"`
	BettingOpen     bool              `json:"betting_open"`
	SecondsLeft     int64             `json:"seconds_left"`
}

// PositionView is the wire shape of one participant's position.
type PositionView struct {
	MarketID      string            `json:"market_id"`
	User          string            `json:"user"`
	StakeByOption []decimal.Decimal `json:"stake_by_option"`
	Total         decimal.Decimal   `json:"total"`
	Claimed       bool              `json:"claimed"`
}

func viewOf(m *engine.Market) MarketView {
	info := m.Info()
	return MarketView{
		ID:              info.ID,
		Creator:         info.Creator,
		Question:        info.Question,
		Options:         info.Options,
		CollateralAsset: info.CollateralAsset,
		Status:          string(info.Status),
		EndTime:         info.EndTime,
		CreatedAt:       info.CreatedAt,
		StakeByOption:   info.StakeByOption,
		TotalPool:       info.TotalPool,
		WinningOptions:  info.WinningOptions,
		BettingOpen:     m.IsOpenForBetting(),
		SecondsLeft:     int64(m.TimeRemaining() / time.Second),
	}
}

func viewsOf(markets []*engine.Market) []MarketView {
	out := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		out = append(out, viewOf(m))
	}
	return out
}

func marketRow(m *engine.Market) (*models.Market, error) {
	info := m.Info()
	options, err := json.Marshal(info.Options)
	if err != nil {
		return nil, err
	}
	stakes, err := json.Marshal(info.StakeByOption)
	if err != nil {
		return nil, err
	}
	winning, err := json.Marshal(info.WinningOptions)
	if err != nil {
		return nil, err
	}
	return &models.Market{
		ID:              info.ID,
		Creator:         info.Creator,
		Question:        info.Question,
		Options:         datatypes.JSON(options),
		CollateralAsset: info.CollateralAsset,
		Status:          string(info.Status),
		EndTime:         info.EndTime,
		BettingOpen:     m.IsOpenForBetting(),
		StakeByOption:   datatypes.JSON(stakes),
		TotalPool:       info.TotalPool,
		WinningOptions:  datatypes.JSON(winning),
		MarketCreatedAt: info.CreatedAt,
	}, nil
}

func stakeRow(m *engine.Market, user string, claimedAmount *decimal.Decimal) (*models.MarketStake, error) {
	pos := m.Position(user)
	amounts, err := json.Marshal(pos.StakeByOption)
	if err != nil {
		return nil, err
	}
	row := &models.MarketStake{
		MarketID: m.ID(),
		UserID:   user,
		Amounts:  datatypes.JSON(amounts),
		Total:    pos.Total,
		Claimed:  pos.Claimed,
	}
	if claimedAmount != nil {
		now := time.Now().UTC()
		row.ClaimedAmount = claimedAmount
		row.ClaimedAt = &now
	}
	return row, nil
}
