package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paripool/internal/engine"
	"paripool/internal/models"
	"paripool/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu      sync.Mutex
	markets map[string]models.Market
	stakes  map[string]models.MarketStake
	batches []models.WagerBatch
	closed  []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		markets: map[string]models.Market{},
		stakes:  map[string]models.MarketStake{},
	}
}

func (r *memRepo) UpsertMarket(_ context.Context, item *models.Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[item.ID] = *item
	return nil
}

func (r *memRepo) UpsertStake(_ context.Context, item *models.MarketStake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stakes[item.MarketID+"|"+item.UserID] = *item
	return nil
}

func (r *memRepo) CloseBetting(_ context.Context, marketIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, marketIDs...)
	return nil
}

func (r *memRepo) ListMarkets(_ context.Context) ([]models.Market, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out, nil
}

func (r *memRepo) ListStakes(_ context.Context) ([]models.MarketStake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MarketStake, 0, len(r.stakes))
	for _, st := range r.stakes {
		out = append(out, st)
	}
	return out, nil
}

func (r *memRepo) InsertWagerBatch(_ context.Context, item *models.WagerBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, *item)
	return nil
}

func (r *memRepo) ListWagerBatches(_ context.Context, _ repository.ListWagerBatchesParams) ([]models.WagerBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WagerBatch, len(r.batches))
	copy(out, r.batches)
	return out, nil
}

func (r *memRepo) CountWagerBatches(_ context.Context, _ repository.ListWagerBatchesParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.batches)), nil
}

func newTestService(clk *fakeClock, repo *memRepo) *MarketService {
	registry := engine.NewRegistry(engine.RegistryOptions{
		Owner:                  "owner",
		DefaultCollateralAsset: "USDC",
		Now:                    clk.Now,
	})
	return &MarketService{Registry: registry, Repo: repo}
}

func createMarket(t *testing.T, svc *MarketService, clk *fakeClock) MarketView {
	t.Helper()
	view, err := svc.Create(context.Background(), CreateMarketInput{
		Creator:  "alice",
		Question: "Will it rain tomorrow?",
		Options:  []string{"Yes", "No"},
		EndTime:  clk.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	return view
}

func TestMirrorRoundTrip(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(clk, repo)
	ctx := context.Background()

	view := createMarket(t, svc, clk)
	if _, err := svc.PlaceBet(ctx, view.ID, "bob", 0, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if _, err := svc.PlaceBet(ctx, view.ID, "carol", 1, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("bet: %v", err)
	}

	// A fresh arena fed from the same mirror must carry the full ledger.
	svc2 := newTestService(clk, repo)
	if err := svc2.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	restored, err := svc2.Info(view.ID)
	if err != nil {
		t.Fatalf("info after rehydrate: %v", err)
	}
	if !restored.TotalPool.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected pool 150 after rehydrate, got %s", restored.TotalPool)
	}
	pos, err := svc2.Position(view.ID, "bob")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !pos.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected bob total 100, got %s", pos.Total)
	}
}

func TestClaimSurvivesRehydrate(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(clk, repo)
	ctx := context.Background()

	view := createMarket(t, svc, clk)
	if _, err := svc.PlaceBet(ctx, view.ID, "bob", 0, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("bet: %v", err)
	}
	clk.Advance(2 * time.Hour)
	if _, err := svc.Resolve(ctx, view.ID, "alice", []int{0}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	payout, err := svc.ClaimWinnings(ctx, view.ID, "bob")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !payout.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected payout 100, got %s", payout)
	}

	svc2 := newTestService(clk, repo)
	if err := svc2.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if _, err := svc2.ClaimWinnings(ctx, view.ID, "bob"); err == nil {
		t.Fatal("expected second claim to fail after rehydrate")
	}
}

func TestSweepExpiredAnnouncesOnce(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	svc := newTestService(clk, repo)
	ctx := context.Background()

	view := createMarket(t, svc, clk)
	clk.Advance(2 * time.Hour)

	svc.SweepExpired(ctx)
	svc.SweepExpired(ctx)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.closed) != 1 || repo.closed[0] != view.ID {
		t.Fatalf("expected market closed exactly once, got %v", repo.closed)
	}
}

func TestBatchJournalWritten(t *testing.T) {
	clk := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := newMemRepo()
	markets := newTestService(clk, repo)
	ctx := context.Background()

	view := createMarket(t, markets, clk)
	wagers := &WagerService{
		Executor: &engine.BatchExecutor{Registry: markets.Registry},
		Markets:  markets,
		Repo:     repo,
	}

	res, err := wagers.Execute(ctx, "bob", decimal.NewFromInt(300), []engine.BatchOrder{
		{MarketID: view.ID, OptionIndex: 0, Amount: decimal.NewFromInt(100)},
		{MarketID: "missing", OptionIndex: 0, Amount: decimal.NewFromInt(100)},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("expected 1 ok / 1 failed, got %d/%d", res.Succeeded, res.Failed)
	}
	if !res.Refunded.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected refund 200, got %s", res.Refunded)
	}

	items, total, err := wagers.ListBatches(ctx, repository.ListWagerBatchesParams{Limit: 10})
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected one journal row, got total=%d len=%d", total, len(items))
	}
	if items[0].Depositor != "bob" {
		t.Fatalf("expected depositor bob, got %s", items[0].Depositor)
	}
}
