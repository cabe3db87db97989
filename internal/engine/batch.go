package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Per-order failure reasons reported by the batch executor.
const (
	ReasonMarketNotOpen = "market_not_open"
	ReasonInvalidOption = "invalid_option"
	ReasonInvalidAmount = "invalid_amount"
)

// BatchOrder is one wager directed at one market inside a batch request.
type BatchOrder struct {
	MarketID    string          `json:"market_id"`
	OptionIndex int             `json:"option_index"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderResult reports the outcome of a single batch order.
type OrderResult struct {
	MarketID    string          `json:"market_id"`
	OptionIndex int             `json:"option_index"`
	Amount      decimal.Decimal `json:"amount"`
	OK          bool            `json:"ok"`
	Reason      string          `json:"reason,omitempty"`
}

// BatchResult is the caller-facing outcome of a batch execution. Partial
// success is a normal, reportable outcome: Refunded carries the deposit
// not consumed by successful orders.
type BatchResult struct {
	Depositor    string          `json:"depositor"`
	TotalDeposit decimal.Decimal `json:"total_deposit"`
	Allocated    decimal.Decimal `json:"allocated"`
	Refunded     decimal.Decimal `json:"refunded"`
	Results      []OrderResult   `json:"results"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
}

// BatchExecutor fans a multi-market wager out to independently-owned
// markets. It holds no funds and no lock of its own: each sub-order takes
// only its target market's lock for the duration of that one buy, so a
// failure in one market never rolls back stake already committed to
// another.
type BatchExecutor struct {
	Registry *Registry
}

// Execute validates and places every order independently. Orders that
// fail validation are reported with a reason and consume no deposit. The
// batch fails as a whole only when not a single order succeeds; in that
// one case the entire deposit is refunded and ErrAllPredictionsFailed is
// returned alongside the per-order results.
func (x *BatchExecutor) Execute(depositor string, totalDeposit decimal.Decimal, orders []BatchOrder) (BatchResult, error) {
	res := BatchResult{
		Depositor:    depositor,
		TotalDeposit: totalDeposit,
		Allocated:    decimal.Zero,
		Refunded:     totalDeposit,
		Results:      make([]OrderResult, 0, len(orders)),
	}
	if totalDeposit.IsNegative() {
		return res, fmt.Errorf("batch: deposit %s: %w", totalDeposit, ErrInvalidAmount)
	}

	requested := decimal.Zero
	for _, o := range orders {
		requested = requested.Add(o.Amount)
	}
	if requested.GreaterThan(totalDeposit) {
		return res, fmt.Errorf("batch: orders total %s > deposit %s: %w", requested, totalDeposit, ErrInsufficientDeposit)
	}

	for _, o := range orders {
		out := OrderResult{MarketID: o.MarketID, OptionIndex: o.OptionIndex, Amount: o.Amount}
		if reason, ok := x.validate(o); !ok {
			out.Reason = reason
			res.Results = append(res.Results, out)
			res.Failed++
			continue
		}

		// Validation passed; the market can still reject if it closed
		// between validation and execution.
		market, err := x.Registry.Get(o.MarketID)
		if err != nil {
			out.Reason = ReasonMarketNotOpen
			res.Results = append(res.Results, out)
			res.Failed++
			continue
		}
		if err := market.Buy(depositor, o.OptionIndex, o.Amount); err != nil {
			out.Reason = buyFailureReason(err)
			res.Results = append(res.Results, out)
			res.Failed++
			continue
		}
		out.OK = true
		res.Results = append(res.Results, out)
		res.Succeeded++
		res.Allocated = res.Allocated.Add(o.Amount)
	}

	res.Refunded = totalDeposit.Sub(res.Allocated)
	if res.Succeeded == 0 {
		// The one atomic case: nothing was applied anywhere, so the
		// whole deposit goes back.
		return res, fmt.Errorf("batch for %s: %w", depositor, ErrAllPredictionsFailed)
	}
	return res, nil
}

func (x *BatchExecutor) validate(o BatchOrder) (string, bool) {
	if !o.Amount.IsPositive() || !o.Amount.IsInteger() {
		return ReasonInvalidAmount, false
	}
	market, err := x.Registry.Get(o.MarketID)
	if err != nil {
		return ReasonMarketNotOpen, false
	}
	if !market.IsOpenForBetting() {
		return ReasonMarketNotOpen, false
	}
	if o.OptionIndex < 0 || o.OptionIndex >= market.OptionCount() {
		return ReasonInvalidOption, false
	}
	return "", true
}

func buyFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, ErrInvalidOption):
		return ReasonInvalidOption
	case errors.Is(err, ErrMarketEnded), errors.Is(err, ErrMarketNotActive):
		return ReasonMarketNotOpen
	default:
		return err.Error()
	}
}
