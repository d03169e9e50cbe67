package domain

import "errors"

var (
	// ErrInsufficientFunds is returned by any debit that would take a
	// balance below zero. The balance is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransition is returned when an order event is applied
	// from a status it is not legal in, including lost CAS races.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrPricingInput marks malformed quote parameters (unknown region,
	// reversed ranks, non-positive hours).
	ErrPricingInput = errors.New("invalid pricing input")

	// ErrConversionUnavailable signals that the external rate source
	// could not be reached. It is recovered internally via the fallback
	// rate table and never surfaced to callers of Convert.
	ErrConversionUnavailable = errors.New("conversion unavailable")
)

// Promo activation errors. Callers distinguish these for user messaging.
var (
	ErrPromoNotFound         = errors.New("promo code not found")
	ErrPromoExpired          = errors.New("promo code expired")
	ErrPromoExhausted        = errors.New("promo code activation limit reached")
	ErrPromoAlreadyActivated = errors.New("promo code already activated")
)
