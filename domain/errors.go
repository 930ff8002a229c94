package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("Internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput       = errors.New("Given Param is not valid")
	ErrInvalidAddress      = errors.New("Invalid address")
	ErrInvalidNumberFormat = errors.New("invalid number format")
	ErrNotImplemented      = errors.New("not implemented")
)

// share ledger
var (
	// ErrInvalidAmount is returned for zero or negative amounts
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrSlippageExceeded is returned when the computed result is worse than the caller's bound
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrInsufficientBacking is returned when the vault lacks the asset to honor a payout
	ErrInsufficientBacking = errors.New("insufficient backing")
	// ErrInsufficientBalance is returned when the caller lacks tokens
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientAllowance is returned when the spender was not authorized for enough tokens
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrSupplyCapExceeded is returned when a mint would pass the configured max supply
	ErrSupplyCapExceeded = errors.New("supply cap exceeded")
	// ErrSinkTransfer is returned when tokens are moved out of the burn sink
	ErrSinkTransfer = errors.New("burn sink is not transferable")
)

// curve
var (
	// ErrCurveUninitialized is returned when k == 0
	ErrCurveUninitialized = errors.New("curve uninitialized")
	// ErrPriceSearchDidNotConverge is returned when the inversion search cannot bracket or narrow the answer
	ErrPriceSearchDidNotConverge = errors.New("price search did not converge")
)

// custody
var (
	// ErrAssetNotInCustody is returned when the vault does not hold the asset
	ErrAssetNotInCustody = errors.New("asset not in custody")
	// ErrNFTNotOwned is the proposal-time name of ErrAssetNotInCustody
	ErrNFTNotOwned = ErrAssetNotInCustody
	// ErrAssetAlreadyInCustody is returned when an asset is deposited twice
	ErrAssetAlreadyInCustody = errors.New("asset already in custody")
	// ErrAssetLocked is returned when a proposal or auction references the asset
	ErrAssetLocked = errors.New("asset locked by proposal or auction")
)

// auction
var (
	ErrProposalAlreadyExists = errors.New("proposal already exists")
	ErrNoSuchProposal        = errors.New("no such proposal")
	ErrProposalNotPending    = errors.New("proposal not pending")
	ErrAuctionAlreadyActive  = errors.New("auction already active")
	ErrAuctionNotActive      = errors.New("auction not active")
	// ErrInvalidAuctionParams is returned when endPrice < minSellPrice or startPrice < endPrice
	ErrInvalidAuctionParams = errors.New("invalid auction params")
)

// access and gateway
var (
	// ErrUnauthorized is returned when a non-owner calls an owner-gated operation
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTarget is returned for the zero address or a target outside the allow-list
	ErrInvalidTarget = errors.New("invalid target")
	// ErrSelfCall is returned when the vault is asked to call itself
	ErrSelfCall = errors.New("self call")
	// ErrInvalidRewardPercentage is returned when the reward exceeds the protocol maximum
	ErrInvalidRewardPercentage = errors.New("invalid reward percentage")
	// ErrRewardNotPaid is returned when an external action ran but its reward transfer failed
	ErrRewardNotPaid = errors.New("reward not paid")
)

// ErrVaultClosed is returned when a request reaches a stopped vault
var ErrVaultClosed = errors.New("vault closed")

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// "not found" errors.
func IsNotFound(err error) bool {
	return isAny(err, ErrNotFound, ErrNoSuchProposal)
}

// IsConflict returns true for errors that represent a state conflict.
func IsConflict(err error) bool {
	return isAny(err,
		ErrProposalAlreadyExists,
		ErrProposalNotPending,
		ErrAuctionAlreadyActive,
		ErrAuctionNotActive,
		ErrAssetLocked,
		ErrAssetAlreadyInCustody,
	)
}

// IsAuthError returns true for access errors.
func IsAuthError(err error) bool {
	return isAny(err, ErrUnauthorized, ErrSelfCall, ErrInvalidTarget)
}
