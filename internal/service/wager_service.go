package service

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"paripool/internal/engine"
	"paripool/internal/models"
	"paripool/internal/repository"
	"paripool/internal/stream"
)

// WagerService runs multi-market batch wagers through the engine's
// executor, journals every execution and mirrors the markets a batch
// touched. The engine result is returned untouched: partial success is a
// normal outcome, and only an all-failed batch surfaces as an error.
type WagerService struct {
	Executor *engine.BatchExecutor
	Markets  *MarketService
	Repo     repository.Repository
	Hub      *stream.Hub
	Logger   *zap.Logger
}

func (s *WagerService) Execute(ctx context.Context, depositor string, totalDeposit decimal.Decimal, orders []engine.BatchOrder) (engine.BatchResult, error) {
	res, err := s.Executor.Execute(depositor, totalDeposit, orders)
	if err != nil && res.Failed == 0 && res.Succeeded == 0 && len(res.Results) == 0 {
		// Rejected before execution (bad deposit, over-allocation):
		// nothing happened, nothing to journal.
		return res, err
	}

	s.journal(ctx, res)

	for _, r := range res.Results {
		if !r.OK {
			continue
		}
		if m, getErr := s.Markets.Registry.Get(r.MarketID); getErr == nil {
			s.Markets.persistMarket(ctx, m)
			s.Markets.persistStake(ctx, m, depositor, nil)
			s.Markets.publish(stream.EventBetPlaced, r.MarketID, viewOf(m))
		}
	}

	if s.Logger != nil {
		s.Logger.Info("batch executed",
			zap.String("depositor", depositor),
			zap.Int("succeeded", res.Succeeded),
			zap.Int("failed", res.Failed),
			zap.String("refunded", res.Refunded.String()),
		)
	}
	return res, err
}

// ListBatches pages through the execution journal, newest first.
func (s *WagerService) ListBatches(ctx context.Context, params repository.ListWagerBatchesParams) ([]models.WagerBatch, int64, error) {
	if s.Repo == nil {
		return nil, 0, nil
	}
	items, err := s.Repo.ListWagerBatches(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountWagerBatches(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *WagerService) journal(ctx context.Context, res engine.BatchResult) {
	if s.Repo == nil {
		return
	}
	orders := make([]engine.BatchOrder, 0, len(res.Results))
	for _, r := range res.Results {
		orders = append(orders, engine.BatchOrder{MarketID: r.MarketID, OptionIndex: r.OptionIndex, Amount: r.Amount})
	}
	ordersJSON, err := json.Marshal(orders)
	if err != nil {
		ordersJSON = []byte("[]")
	}
	resultsJSON, err := json.Marshal(res.Results)
	if err != nil {
		resultsJSON = []byte("[]")
	}
	row := &models.WagerBatch{
		Depositor:    res.Depositor,
		TotalDeposit: res.TotalDeposit,
		Allocated:    res.Allocated,
		Refunded:     res.Refunded,
		Orders:       datatypes.JSON(ordersJSON),
		Results:      datatypes.JSON(resultsJSON),
		Succeeded:    res.Succeeded,
		Failed:       res.Failed,
	}
	if err := s.Repo.InsertWagerBatch(ctx, row); err != nil && s.Logger != nil {
		s.Logger.Warn("wager batch journal write failed", zap.Error(err), zap.String("depositor", res.Depositor))
	}
}
