package repository

import (
	"context"

	"paripool/internal/models"
)

// ListWagerBatchesParams filters the batch-execution journal.
type ListWagerBatchesParams struct {
	Limit     int
	Offset    int
	Depositor *string
}

// Repository is the durable mirror behind the in-memory settlement
// engine. Writes are fire-after-commit: the engine never waits on the
// mirror and a mirror failure never unwinds ledger state.
type Repository interface {
	UpsertMarket(ctx context.Context, item *models.Market) error
	UpsertStake(ctx context.Context, item *models.MarketStake) error
	CloseBetting(ctx context.Context, marketIDs []string) error

	// Rehydration at boot.
	ListMarkets(ctx context.Context) ([]models.Market, error)
	ListStakes(ctx context.Context) ([]models.MarketStake, error)

	// Batch-execution journal.
	InsertWagerBatch(ctx context.Context, item *models.WagerBatch) error
	ListWagerBatches(ctx context.Context, params ListWagerBatchesParams) ([]models.WagerBatch, error)
	CountWagerBatches(ctx context.Context, params ListWagerBatchesParams) (int64, error)
}
