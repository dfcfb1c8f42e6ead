package services

import "errors"

var (
	// Ledger
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")

	// Promo redemption, surfaced verbatim to the caller
	ErrPromoNotFound          = errors.New("promo code not found")
	ErrPromoInactive          = errors.New("promo code is inactive")
	ErrPromoExpired           = errors.New("promo code has expired")
	ErrPromoUsageLimitReached = errors.New("promo code usage limit reached")
	ErrPromoAlreadyRedeemed   = errors.New("promo code already redeemed by this account")

	// Affiliate
	ErrAffiliateNotFound    = errors.New("affiliate not found")
	ErrAffiliateNotApproved = errors.New("affiliate is not approved")
	ErrAffiliateStatusFinal = errors.New("affiliate status is terminal and cannot change")

	// Challenges
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrTaskNotFound      = errors.New("no challenge task matches this action")
)
