package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Registry is the arena of markets indexed by id. It creates and indexes
// markets but holds no settlement logic of its own; all ledger mutation
// goes through the Market it hands out. The arena lock is never held
// while calling into a market, and markets notify the registry of
// terminal transitions after releasing their own lock, so there is no
// lock nesting in either direction.
type Registry struct {
	mu        sync.RWMutex
	markets   map[string]*Market
	order     []string
	byCreator map[string][]string

	// active is maintained incrementally on resolve/cancel instead of
	// filtering every market by status on each read.
	active map[string]struct{}

	owner        string
	defaultAsset string
	now          func() time.Time
}

// RegistryOptions configures a new registry. Now defaults to time.Now;
// tests inject a fake clock through it.
type RegistryOptions struct {
	Owner                  string
	DefaultCollateralAsset string
	Now                    func() time.Time
}

func NewRegistry(opts RegistryOptions) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		markets:      map[string]*Market{},
		byCreator:    map[string][]string{},
		active:       map[string]struct{}{},
		owner:        opts.Owner,
		defaultAsset: strings.TrimSpace(opts.DefaultCollateralAsset),
		now:          now,
	}
}

// CreateMarket validates the inputs, instantiates a market and indexes
// it. An empty asset selects the registry default; if neither is set the
// call fails.
func (r *Registry) CreateMarket(creator, question string, options []string, endTime time.Time, asset string) (*Market, error) {
	if strings.TrimSpace(creator) == "" {
		return nil, fmt.Errorf("create market: empty creator: %w", ErrNotAuthorized)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("create market: %w", ErrInvalidQuestion)
	}
	if len(options) < MinOptions || len(options) > MaxOptions {
		return nil, fmt.Errorf("create market: %d options: %w", len(options), ErrInvalidOptions)
	}
	for i, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return nil, fmt.Errorf("create market: empty option %d: %w", i, ErrInvalidOptions)
		}
	}
	if !endTime.After(r.now()) {
		return nil, fmt.Errorf("create market: end time %s: %w", endTime.Format(time.RFC3339), ErrInvalidEndTime)
	}
	asset = strings.TrimSpace(asset)
	if asset == "" {
		asset = r.DefaultCollateralAsset()
	}
	if asset == "" {
		return nil, fmt.Errorf("create market: no collateral asset and no default: %w", ErrInvalidToken)
	}

	m := newMarket(uuid.NewString(), creator, question, options, endTime, asset, r.now)
	m.onTerminal = r.markTerminal

	r.mu.Lock()
	r.markets[m.id] = m
	r.order = append(r.order, m.id)
	r.byCreator[creator] = append(r.byCreator[creator], m.id)
	r.active[m.id] = struct{}{}
	r.mu.Unlock()
	return m, nil
}

// CreateMarketSimple creates a market denominated in the registry's
// default collateral asset.
func (r *Registry) CreateMarketSimple(creator, question string, options []string, endTime time.Time) (*Market, error) {
	return r.CreateMarket(creator, question, options, endTime, "")
}

// Get returns the market with the given id.
func (r *Registry) Get(id string) (*Market, error) {
	r.mu.RLock()
	m, ok := r.markets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("market %s: %w", id, ErrMarketNotFound)
	}
	return m, nil
}

// IsValidMarket reports whether the id refers to a known market.
func (r *Registry) IsValidMarket(id string) bool {
	r.mu.RLock()
	_, ok := r.markets[id]
	r.mu.RUnlock()
	return ok
}

// All returns every market in creation order.
func (r *Registry) All() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Market, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.markets[id])
	}
	return out
}

// Paginated returns the requested window in creation order and the true
// total count. An offset at or beyond the total yields an empty window,
// never an error.
func (r *Registry) Paginated(offset, limit int) ([]*Market, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := int64(len(r.order))
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(r.order) {
		return []*Market{}, total
	}
	end := offset + limit
	if end > len(r.order) {
		end = len(r.order)
	}
	out := make([]*Market, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.markets[id])
	}
	return out, total
}

// Active returns markets that have not been resolved or cancelled, in
// creation order. A market past its end time but not yet settled is still
// Active; only its betting window is closed.
func (r *Registry) Active() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Market, 0, len(r.active))
	for _, id := range r.order {
		if _, ok := r.active[id]; ok {
			out = append(out, r.markets[id])
		}
	}
	return out
}

// ByCreator returns the creator's markets in creation order.
func (r *Registry) ByCreator(creator string) []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCreator[creator]
	out := make([]*Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.markets[id])
	}
	return out
}

// ExpiredActive returns active markets whose betting window has closed,
// i.e. the ones awaiting resolution. Used by the expiry sweep.
func (r *Registry) ExpiredActive() []*Market {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Market, 0)
	for _, id := range r.order {
		if _, ok := r.active[id]; !ok {
			continue
		}
		m := r.markets[id]
		if !now.Before(m.endTime) {
			out = append(out, m)
		}
	}
	return out
}

// Owner returns the registry admin identity.
func (r *Registry) Owner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// DefaultCollateralAsset returns the asset used when market creation does
// not name one.
func (r *Registry) DefaultCollateralAsset() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultAsset
}

// SetDefaultCollateralAsset changes the default asset. Owner only.
func (r *Registry) SetDefaultCollateralAsset(caller, asset string) error {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return fmt.Errorf("set default asset: %w", ErrInvalidToken)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return fmt.Errorf("set default asset: caller %s: %w", caller, ErrNotOwner)
	}
	r.defaultAsset = asset
	return nil
}

// TransferOwnership hands registry admin rights to a new identity. Owner
// only; an empty target is rejected.
func (r *Registry) TransferOwnership(caller, newOwner string) error {
	newOwner = strings.TrimSpace(newOwner)
	if newOwner == "" {
		return fmt.Errorf("transfer ownership: %w", ErrInvalidToken)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return fmt.Errorf("transfer ownership: caller %s: %w", caller, ErrNotOwner)
	}
	r.owner = newOwner
	return nil
}

// Restore rebuilds a market from persisted state and indexes it. Pool
// totals are recomputed from the per-user vectors so the conservation
// invariant holds by construction. Intended for boot-time rehydration;
// callers should restore markets ordered by creation time.
func (r *Registry) Restore(st State) error {
	if st.ID == "" {
		return fmt.Errorf("restore: empty id: %w", ErrMarketNotFound)
	}
	if len(st.Options) < MinOptions || len(st.Options) > MaxOptions {
		return fmt.Errorf("restore market %s: %d options: %w", st.ID, len(st.Options), ErrInvalidOptions)
	}

	m := &Market{
		id:              st.ID,
		creator:         st.Creator,
		question:        st.Question,
		options:         append([]string(nil), st.Options...),
		collateralAsset: st.CollateralAsset,
		endTime:         st.EndTime,
		createdAt:       st.CreatedAt,
		status:          st.Status,
		stakeByOption:   zeroVector(len(st.Options)),
		stakeByUser:     map[string][]decimal.Decimal{},
		totalPool:       decimal.Zero,
		winningOptions:  make([]bool, len(st.Options)),
		claimed:         map[string]bool{},
		now:             r.now,
		onTerminal:      r.markTerminal,
	}
	for user, vec := range st.StakeByUser {
		if len(vec) != len(st.Options) {
			return fmt.Errorf("restore market %s: user %s stake vector length %d: %w", st.ID, user, len(vec), ErrInvalidOption)
		}
		m.stakeByUser[user] = append([]decimal.Decimal(nil), vec...)
		for i, amt := range vec {
			m.stakeByOption[i] = m.stakeByOption[i].Add(amt)
			m.totalPool = m.totalPool.Add(amt)
		}
	}
	for user, done := range st.Claimed {
		if done {
			m.claimed[user] = true
		}
	}
	if st.Status == StatusResolved {
		if len(st.WinningOptions) != len(st.Options) {
			return fmt.Errorf("restore market %s: winning vector length %d: %w", st.ID, len(st.WinningOptions), ErrInvalidOutcome)
		}
		copy(m.winningOptions, st.WinningOptions)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.markets[m.id]; exists {
		return fmt.Errorf("restore market %s: already registered: %w", m.id, ErrInvalidOption)
	}
	r.markets[m.id] = m
	r.order = append(r.order, m.id)
	r.byCreator[m.creator] = append(r.byCreator[m.creator], m.id)
	if m.status == StatusActive {
		r.active[m.id] = struct{}{}
	}
	return nil
}

// SortRestored re-sorts the creation-order index by market creation time.
// Called once after a batch of Restore calls in case rows arrived out of
// order.
func (r *Registry) SortRestored() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.order, func(i, j int) bool {
		return r.markets[r.order[i]].createdAt.Before(r.markets[r.order[j]].createdAt)
	})
}

func (r *Registry) markTerminal(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}
