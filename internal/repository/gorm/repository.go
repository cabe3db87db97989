package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paripool/internal/models"
	"paripool/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"betting_open",
			"stake_by_option",
			"total_pool",
			"winning_options",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) UpsertStake(ctx context.Context, item *models.MarketStake) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "market_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"amounts",
			"total",
			"claimed",
			"claimed_amount",
			"claimed_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) CloseBetting(ctx context.Context, marketIDs []string) error {
	if s == nil || s.db == nil || len(marketIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id IN ?", marketIDs).
		Update("betting_open", false).Error
}

func (s *Store) ListMarkets(ctx context.Context) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Market
	if err := s.db.WithContext(ctx).
		Order("market_created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListStakes(ctx context.Context) ([]models.MarketStake, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.MarketStake
	if err := s.db.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertWagerBatch(ctx context.Context, item *models.WagerBatch) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListWagerBatches(ctx context.Context, params repository.ListWagerBatchesParams) ([]models.WagerBatch, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.batchQuery(ctx, params).Order("created_at DESC")
	var items []models.WagerBatch
	if err := query.Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountWagerBatches(ctx context.Context, params repository.ListWagerBatchesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.batchQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) batchQuery(ctx context.Context, params repository.ListWagerBatchesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.WagerBatch{})
	if params.Depositor != nil && strings.TrimSpace(*params.Depositor) != "" {
		query = query.Where("depositor = ?", strings.TrimSpace(*params.Depositor))
	}
	return query
}

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
