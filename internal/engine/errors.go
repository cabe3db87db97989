package engine

import "errors"

// The settlement core fails with a closed set of sentinel errors. Call
// sites wrap them with market/option context via fmt.Errorf("%w", ...),
// so callers branch with errors.Is and still see which ledger rejected
// them.
var (
	// Input validation.
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidOptions  = errors.New("invalid options")
	ErrInvalidEndTime  = errors.New("invalid end time")
	ErrInvalidToken    = errors.New("invalid collateral token")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidOption   = errors.New("invalid option index")
	ErrInvalidOutcome  = errors.New("invalid outcome selection")

	// Authorization.
	ErrNotAuthorized = errors.New("caller is not the market creator")
	ErrNotOwner      = errors.New("caller is not the registry owner")

	// Lifecycle conflicts. Retrying without a state change reproduces
	// the same failure, so none of these are retried internally.
	ErrMarketEnded        = errors.New("betting window has ended")
	ErrMarketStillOpen    = errors.New("market has not reached its end time")
	ErrMarketNotActive    = errors.New("market is not active")
	ErrMarketNotResolved  = errors.New("market is not resolved")
	ErrMarketNotCancelled = errors.New("market is not cancelled")
	ErrMarketNotFound     = errors.New("market not found")

	// Claim guards.
	ErrNothingToClaim  = errors.New("nothing to claim")
	ErrNothingToRefund = errors.New("nothing to refund")
	ErrAlreadyClaimed  = errors.New("already claimed")

	// Batch execution.
	ErrInsufficientDeposit  = errors.New("orders exceed total deposit")
	ErrAllPredictionsFailed = errors.New("all predictions failed")
)
