package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paripool/internal/engine"
	"paripool/internal/models"
)

// Rehydrate rebuilds the in-memory arena from the persistence mirror.
// Called once at boot, before the service accepts traffic. Rows that
// cannot be decoded are skipped with a warning rather than blocking
// startup; the skipped market simply no longer exists to callers.
func (s *MarketService) Rehydrate(ctx context.Context) error {
	if s.Repo == nil {
		return nil
	}
	markets, err := s.Repo.ListMarkets(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate: list markets: %w", err)
	}
	stakes, err := s.Repo.ListStakes(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate: list stakes: %w", err)
	}

	stakesByMarket := map[string][]models.MarketStake{}
	for _, st := range stakes {
		stakesByMarket[st.MarketID] = append(stakesByMarket[st.MarketID], st)
	}

	restored := 0
	for _, row := range markets {
		state, err := stateFromRows(row, stakesByMarket[row.ID])
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("skipping undecodable market row", zap.Error(err), zap.String("market_id", row.ID))
			}
			continue
		}
		if err := s.Registry.Restore(state); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("skipping unrestorable market", zap.Error(err), zap.String("market_id", row.ID))
			}
			continue
		}
		restored++
	}
	s.Registry.SortRestored()
	if s.Logger != nil {
		s.Logger.Info("arena rehydrated", zap.Int("markets", restored), zap.Int("stake_rows", len(stakes)))
	}
	return nil
}

func stateFromRows(row models.Market, stakeRows []models.MarketStake) (engine.State, error) {
	var options []string
	if err := json.Unmarshal(row.Options, &options); err != nil {
		return engine.State{}, fmt.Errorf("options: %w", err)
	}

	var winning []bool
	if len(row.WinningOptions) > 0 {
		if err := json.Unmarshal(row.WinningOptions, &winning); err != nil {
			return engine.State{}, fmt.Errorf("winning options: %w", err)
		}
	}

	byUser := map[string][]decimal.Decimal{}
	claimed := map[string]bool{}
	for _, st := range stakeRows {
		var vec []decimal.Decimal
		if err := json.Unmarshal(st.Amounts, &vec); err != nil {
			return engine.State{}, fmt.Errorf("stake vector for %s: %w", st.UserID, err)
		}
		byUser[st.UserID] = vec
		if st.Claimed {
			claimed[st.UserID] = true
		}
	}

	return engine.State{
		ID:              row.ID,
		Creator:         row.Creator,
		Question:        row.Question,
		Options:         options,
		CollateralAsset: row.CollateralAsset,
		EndTime:         row.EndTime,
		CreatedAt:       row.MarketCreatedAt,
		Status:          engine.Status(row.Status),
		StakeByUser:     byUser,
		Claimed:         claimed,
		WinningOptions:  winning,
	}, nil
}
