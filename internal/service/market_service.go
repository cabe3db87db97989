package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paripool/internal/engine"
	"paripool/internal/repository"
	"paripool/internal/stream"
)

// MarketService fronts the settlement engine: it forwards calls to the
// per-market ledgers, mirrors committed state to the repository and
// publishes stream events. Mirror failures are logged and never unwind
// engine state; the engine is the source of truth.
type MarketService struct {
	Registry *engine.Registry
	Repo     repository.Repository
	Hub      *stream.Hub
	Logger   *zap.Logger

	sweepMu sync.Mutex
	swept   map[string]struct{}
}

// CreateMarketInput carries validated-at-the-edge creation parameters.
type CreateMarketInput struct {
	Creator         string
	Question        string
	Options         []string
	EndTime         time.Time
	CollateralAsset string
}

func (s *MarketService) Create(ctx context.Context, in CreateMarketInput) (MarketView, error) {
	m, err := s.Registry.CreateMarket(in.Creator, in.Question, in.Options, in.EndTime, in.CollateralAsset)
	if err != nil {
		return MarketView{}, err
	}
	s.persistMarket(ctx, m)
	view := viewOf(m)
	s.publish(stream.EventMarketCreated, m.ID(), view)
	if s.Logger != nil {
		s.Logger.Info("market created",
			zap.String("market_id", m.ID()),
			zap.String("creator", in.Creator),
			zap.Int("options", len(in.Options)),
			zap.Time("end_time", in.EndTime),
		)
	}
	return view, nil
}

func (s *MarketService) PlaceBet(ctx context.Context, marketID, user string, option int, amount decimal.Decimal) (MarketView, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return MarketView{}, err
	}
	if err := m.Buy(user, option, amount); err != nil {
		return MarketView{}, err
	}
	s.persistMarket(ctx, m)
	s.persistStake(ctx, m, user, nil)
	view := viewOf(m)
	s.publish(stream.EventBetPlaced, marketID, view)
	return view, nil
}

func (s *MarketService) Resolve(ctx context.Context, marketID, caller string, winning []int) (MarketView, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return MarketView{}, err
	}
	if err := m.Resolve(caller, winning); err != nil {
		return MarketView{}, err
	}
	s.persistMarket(ctx, m)
	view := viewOf(m)
	s.publish(stream.EventMarketResolved, marketID, view)
	if s.Logger != nil {
		s.Logger.Info("market resolved",
			zap.String("market_id", marketID),
			zap.Ints("winning_options", winning),
		)
	}
	return view, nil
}

func (s *MarketService) Cancel(ctx context.Context, marketID, caller string) (MarketView, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return MarketView{}, err
	}
	if err := m.Cancel(caller); err != nil {
		return MarketView{}, err
	}
	s.persistMarket(ctx, m)
	view := viewOf(m)
	s.publish(stream.EventMarketCancelled, marketID, view)
	if s.Logger != nil {
		s.Logger.Info("market cancelled", zap.String("market_id", marketID))
	}
	return view, nil
}

func (s *MarketService) ClaimWinnings(ctx context.Context, marketID, user string) (decimal.Decimal, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return decimal.Zero, err
	}
	payout, err := m.ClaimWinnings(user)
	if err != nil {
		return decimal.Zero, err
	}
	s.persistStake(ctx, m, user, &payout)
	s.publish(stream.EventWinningsClaimed, marketID, claimView{User: user, Amount: payout})
	return payout, nil
}

func (s *MarketService) ClaimRefund(ctx context.Context, marketID, user string) (decimal.Decimal, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return decimal.Zero, err
	}
	refund, err := m.ClaimRefund(user)
	if err != nil {
		return decimal.Zero, err
	}
	s.persistStake(ctx, m, user, &refund)
	s.publish(stream.EventRefundClaimed, marketID, claimView{User: user, Amount: refund})
	return refund, nil
}

// --- reads ------------------------------------------------------------

func (s *MarketService) Info(marketID string) (MarketView, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return MarketView{}, err
	}
	return viewOf(m), nil
}

func (s *MarketService) Odds(marketID string) ([]int64, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return nil, err
	}
	return m.Odds(), nil
}

func (s *MarketService) Position(marketID, user string) (PositionView, error) {
	m, err := s.Registry.Get(marketID)
	if err != nil {
		return PositionView{}, err
	}
	pos := m.Position(user)
	return PositionView{
		MarketID:      marketID,
		User:          user,
		StakeByOption: pos.StakeByOption,
		Total:         pos.Total,
		Claimed:       pos.Claimed,
	}, nil
}

func (s *MarketService) List(offset, limit int) ([]MarketView, int64) {
	markets, total := s.Registry.Paginated(offset, limit)
	return viewsOf(markets), total
}

func (s *MarketService) Active() []MarketView {
	return viewsOf(s.Registry.Active())
}

func (s *MarketService) ByCreator(creator string) []MarketView {
	return viewsOf(s.Registry.ByCreator(creator))
}

// --- expiry sweep -----------------------------------------------------

// SweepExpired finds active markets whose betting window has closed since
// the last sweep, flips their mirror flag and announces them once. Run
// from cron.
func (s *MarketService) SweepExpired(ctx context.Context) {
	expired := s.Registry.ExpiredActive()
	if len(expired) == 0 {
		return
	}

	s.sweepMu.Lock()
	if s.swept == nil {
		s.swept = map[string]struct{}{}
	}
	fresh := make([]*engine.Market, 0, len(expired))
	ids := make([]string, 0, len(expired))
	for _, m := range expired {
		if _, done := s.swept[m.ID()]; done {
			continue
		}
		s.swept[m.ID()] = struct{}{}
		fresh = append(fresh, m)
		ids = append(ids, m.ID())
	}
	s.sweepMu.Unlock()

	if len(fresh) == 0 {
		return
	}
	if s.Repo != nil {
		if err := s.Repo.CloseBetting(ctx, ids); err != nil && s.Logger != nil {
			s.Logger.Warn("mirror close betting failed", zap.Error(err), zap.Strings("market_ids", ids))
		}
	}
	for _, m := range fresh {
		s.publish(stream.EventBettingClosed, m.ID(), viewOf(m))
	}
	if s.Logger != nil {
		s.Logger.Info("markets awaiting resolution", zap.Int("count", len(fresh)), zap.Strings("market_ids", ids))
	}
}

// --- internals --------------------------------------------------------

type claimView struct {
	User   string          `json:"user"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *MarketService) publish(eventType, marketID string, payload any) {
	if s.Hub == nil {
		return
	}
	s.Hub.Broadcast(stream.Event{Type: eventType, MarketID: marketID, Payload: payload})
}

func (s *MarketService) persistMarket(ctx context.Context, m *engine.Market) {
	if s.Repo == nil {
		return
	}
	row, err := marketRow(m)
	if err == nil {
		err = s.Repo.UpsertMarket(ctx, row)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("mirror market write failed", zap.Error(err), zap.String("market_id", m.ID()))
	}
}

func (s *MarketService) persistStake(ctx context.Context, m *engine.Market, user string, claimedAmount *decimal.Decimal) {
	if s.Repo == nil {
		return
	}
	row, err := stakeRow(m, user, claimedAmount)
	if err == nil {
		err = s.Repo.UpsertStake(ctx, row)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("mirror stake write failed",
			zap.Error(err),
			zap.String("market_id", m.ID()),
			zap.String("user", user),
		)
	}
}
