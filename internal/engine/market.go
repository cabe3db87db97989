package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a market. It only ever advances:
// Active -> Resolved or Active -> Cancelled, never back.
type Status string

const (
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

const (
	// MinOptions and MaxOptions bound the outcome count fixed at creation.
	MinOptions = 2
	MaxOptions = 4

	// OddsScale is the basis-point denominator used by Odds.
	OddsScale = 10000
)

var bpsScale = decimal.NewFromInt(OddsScale)

// Market owns one event's stake ledger, lifecycle state and settlement
// math. Every mutating method takes the market's own mutex, so the market
// is the unit of serialization; no method acquires any other market's
// lock.
//
// Amounts are whole base units of the market's collateral asset. Payouts
// use exact integer floor division, so a few indivisible units of the
// pool can remain unclaimed after everyone has settled. That remainder is
// accepted, not redistributed.
type Market struct {
	mu sync.Mutex

	id              string
	creator         string
	question        string
	options         []string
	collateralAsset string
	endTime         time.Time
	createdAt       time.Time

	status         Status
	stakeByOption  []decimal.Decimal
	stakeByUser    map[string][]decimal.Decimal
	totalPool      decimal.Decimal
	winningOptions []bool
	claimed        map[string]bool

	now func() time.Time

	// onTerminal is invoked (outside the market lock) exactly once when
	// the market leaves Active, so the registry can drop it from the
	// active index.
	onTerminal func(id string)
}

// Info is a read-only snapshot of a market, safe to hand to callers.
type Info struct {
	ID              string
	Creator         string
	Question        string
	Options         []string
	CollateralAsset string
	Status          Status
	EndTime         time.Time
	CreatedAt       time.Time
	StakeByOption   []decimal.Decimal
	TotalPool       decimal.Decimal
	WinningOptions  []bool
}

// Position is one participant's view of their stakes in a market.
type Position struct {
	StakeByOption []decimal.Decimal
	Total         decimal.Decimal
	Claimed       bool
}

// State carries everything needed to reconstruct a market, used for
// rehydrating the arena from the persistence mirror at boot.
type State struct {
	ID              string
	Creator         string
	Question        string
	Options         []string
	CollateralAsset string
	EndTime         time.Time
	CreatedAt       time.Time
	Status          Status
	StakeByUser     map[string][]decimal.Decimal
	Claimed         map[string]bool
	WinningOptions  []bool
}

func newMarket(id, creator, question string, options []string, endTime time.Time, asset string, now func() time.Time) *Market {
	opts := make([]string, len(options))
	copy(opts, options)
	return &Market{
		id:              id,
		creator:         creator,
		question:        question,
		options:         opts,
		collateralAsset: asset,
		endTime:         endTime,
		createdAt:       now(),
		status:          StatusActive,
		stakeByOption:   zeroVector(len(opts)),
		stakeByUser:     map[string][]decimal.Decimal{},
		totalPool:       decimal.Zero,
		winningOptions:  make([]bool, len(opts)),
		claimed:         map[string]bool{},
		now:             now,
	}
}

func zeroVector(n int) []decimal.Decimal {
	v := make([]decimal.Decimal, n)
	for i := range v {
		v[i] = decimal.Zero
	}
	return v
}

// ID returns the market's opaque identifier.
func (m *Market) ID() string { return m.id }

// Creator returns the identity that created the market and holds
// resolution authority.
func (m *Market) Creator() string { return m.creator }

// CollateralAsset returns the value unit this market is denominated in.
func (m *Market) CollateralAsset() string { return m.collateralAsset }

// Buy stakes amount on the given option. The amount must be a positive
// whole number of collateral base units and the market must still be open
// for betting.
func (m *Market) Buy(user string, option int, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusActive {
		return fmt.Errorf("market %s: %w", m.id, ErrMarketNotActive)
	}
	if !m.now().Before(m.endTime) {
		return fmt.Errorf("market %s: %w", m.id, ErrMarketEnded)
	}
	if !amount.IsPositive() || !amount.IsInteger() {
		return fmt.Errorf("market %s: amount %s: %w", m.id, amount, ErrInvalidAmount)
	}
	if option < 0 || option >= len(m.options) {
		return fmt.Errorf("market %s: option %d of %d: %w", m.id, option, len(m.options), ErrInvalidOption)
	}

	vec, ok := m.stakeByUser[user]
	if !ok {
		vec = zeroVector(len(m.options))
		m.stakeByUser[user] = vec
	}
	vec[option] = vec[option].Add(amount)
	m.stakeByOption[option] = m.stakeByOption[option].Add(amount)
	m.totalPool = m.totalPool.Add(amount)
	return nil
}

// Resolve declares the winning option(s). Only the creator may resolve,
// only after the end time, and only while the market is still Active.
// More than one winning index is allowed; claims then split the pool over
// the combined winning stake.
func (m *Market) Resolve(caller string, winning []int) error {
	m.mu.Lock()
	if caller != m.creator {
		m.mu.Unlock()
		return fmt.Errorf("market %s: %w", m.id, ErrNotAuthorized)
	}
	if m.status != StatusActive {
		m.mu.Unlock()
		return fmt.Errorf("market %s: %w", m.id, ErrMarketNotActive)
	}
	if m.now().Before(m.endTime) {
		m.mu.Unlock()
		return fmt.Errorf("market %s: %w", m.id, ErrMarketStillOpen)
	}
	if len(winning) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("market %s: %w", m.id, ErrInvalidOutcome)
	}
	for _, idx := range winning {
		if idx < 0 || idx >= len(m.options) {
			m.mu.Unlock()
			return fmt.Errorf("market %s: winning index %d: %w", m.id, idx, ErrInvalidOutcome)
		}
	}

	for _, idx := range winning {
		m.winningOptions[idx] = true
	}
	m.status = StatusResolved
	notify := m.onTerminal
	m.mu.Unlock()

	if notify != nil {
		notify(m.id)
	}
	return nil
}

// Cancel voids the market. Allowed before or after the end time, as long
// as it has not been resolved. Participants then claim refunds instead of
// winnings.
func (m *Market) Cancel(caller string) error {
	m.mu.Lock()
	if caller != m.creator {
		m.mu.Unlock()
		return fmt.Errorf("market %s: %w", m.id, ErrNotAuthorized)
	}
	if m.status != StatusActive {
		m.mu.Unlock()
		return fmt.Errorf("market %s: %w", m.id, ErrMarketNotActive)
	}
	m.status = StatusCancelled
	notify := m.onTerminal
	m.mu.Unlock()

	if notify != nil {
		notify(m.id)
	}
	return nil
}

// ClaimWinnings settles a participant's share of a resolved market:
// floor(userWinning * totalPool / totalWinning), summing stakes across
// all winning options. The claimed flag is set in the same critical
// section that computes the payout, so a participant can never settle
// twice even under concurrent claims.
func (m *Market) ClaimWinnings(user string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusResolved {
		return decimal.Zero, fmt.Errorf("market %s: %w", m.id, ErrMarketNotResolved)
	}
	if m.claimed[user] {
		return decimal.Zero, fmt.Errorf("market %s: user %s: %w", m.id, user, ErrAlreadyClaimed)
	}

	userWinning := decimal.Zero
	totalWinning := decimal.Zero
	vec := m.stakeByUser[user]
	for i, won := range m.winningOptions {
		if !won {
			continue
		}
		totalWinning = totalWinning.Add(m.stakeByOption[i])
		if vec != nil {
			userWinning = userWinning.Add(vec[i])
		}
	}
	if userWinning.IsZero() || totalWinning.IsZero() {
		return decimal.Zero, fmt.Errorf("market %s: user %s: %w", m.id, user, ErrNothingToClaim)
	}

	// Exact integer floor division; the pool's indivisible remainder
	// stays in the market.
	payout, _ := userWinning.Mul(m.totalPool).QuoRem(totalWinning, 0)
	m.claimed[user] = true
	return payout, nil
}

// ClaimRefund returns a participant's entire stake, across every option,
// after cancellation.
func (m *Market) ClaimRefund(user string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusCancelled {
		return decimal.Zero, fmt.Errorf("market %s: %w", m.id, ErrMarketNotCancelled)
	}
	if m.claimed[user] {
		return decimal.Zero, fmt.Errorf("market %s: user %s: %w", m.id, user, ErrAlreadyClaimed)
	}

	refund := decimal.Zero
	for _, amt := range m.stakeByUser[user] {
		refund = refund.Add(amt)
	}
	if refund.IsZero() {
		return decimal.Zero, fmt.Errorf("market %s: user %s: %w", m.id, user, ErrNothingToRefund)
	}
	m.claimed[user] = true
	return refund, nil
}

// Odds reports each option's share of the pool in basis points. An empty
// pool yields an even split; its division remainder goes to the last
// option so the vector sums to exactly OddsScale.
func (m *Market) Odds() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.options)
	out := make([]int64, n)
	if m.totalPool.IsZero() {
		even := int64(OddsScale / n)
		for i := range out {
			out[i] = even
		}
		out[n-1] += OddsScale - even*int64(n)
		return out
	}
	for i, stake := range m.stakeByOption {
		q, _ := stake.Mul(bpsScale).QuoRem(m.totalPool, 0)
		out[i] = q.IntPart()
	}
	return out
}

// IsOpenForBetting reports whether the market still accepts stakes.
func (m *Market) IsOpenForBetting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusActive && m.now().Before(m.endTime)
}

// TimeRemaining is the time left in the betting window, zero once past.
func (m *Market) TimeRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.endTime.Sub(m.now()); d > 0 {
		return d
	}
	return 0
}

// OptionCount returns the number of outcomes fixed at creation.
func (m *Market) OptionCount() int {
	return len(m.options)
}

// Info returns a deep-copied snapshot of the market.
func (m *Market) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	stake := make([]decimal.Decimal, len(m.stakeByOption))
	copy(stake, m.stakeByOption)
	winning := make([]bool, len(m.winningOptions))
	copy(winning, m.winningOptions)
	opts := make([]string, len(m.options))
	copy(opts, m.options)

	return Info{
		ID:              m.id,
		Creator:         m.creator,
		Question:        m.question,
		Options:         opts,
		CollateralAsset: m.collateralAsset,
		Status:          m.status,
		EndTime:         m.endTime,
		CreatedAt:       m.createdAt,
		StakeByOption:   stake,
		TotalPool:       m.totalPool,
		WinningOptions:  winning,
	}
}

// Position returns the given participant's stake vector and claimed flag.
// Unknown participants get a zero vector.
func (m *Market) Position(user string) Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	vec := zeroVector(len(m.options))
	total := decimal.Zero
	if stakes, ok := m.stakeByUser[user]; ok {
		copy(vec, stakes)
		for _, amt := range stakes {
			total = total.Add(amt)
		}
	}
	return Position{StakeByOption: vec, Total: total, Claimed: m.claimed[user]}
}

// Stakeholders returns every participant holding stake in the market.
func (m *Market) Stakeholders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.stakeByUser))
	for user := range m.stakeByUser {
		out = append(out, user)
	}
	return out
}
