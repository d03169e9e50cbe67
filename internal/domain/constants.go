package domain

// Order statuses.
const (
	OrderStatusPending       = "pending"
	OrderStatusConfirmed     = "confirmed"
	OrderStatusInProgress    = "in_progress"
	OrderStatusPaused        = "paused"
	OrderStatusPendingReview = "pending_review"
	OrderStatusCompleted     = "completed"
	OrderStatusCancelled     = "cancelled"
)

// Service types.
const (
	ServiceRankBoost = "rank_boost"
	ServiceCoaching  = "coaching"
)

// Boost delivery modes. Multipliers are keyed by these.
const (
	ModeAccount  = "account"
	ModeShared   = "shared"
	ModeWinrate  = "winrate"
	ModeMMR      = "mmr"
	ModeCoaching = "coaching"
)

// Promo code effects.
const (
	PromoEffectDiscountPercent = "discount_percent"
	PromoEffectBonusAmount     = "bonus_amount"
)

// Bonus ledger source tags.
const (
	BonusSourceReferral     = "referral"
	BonusSourcePromo        = "promo"
	BonusSourceOrderPayment = "order-payment"
	BonusSourceAdmin        = "admin"
)

// Payout request statuses.
const (
	PayoutStatusPending  = "pending"
	PayoutStatusApproved = "approved"
	PayoutStatusRejected = "rejected"
)

// Top-up request statuses.
const (
	TopupStatusPending  = "pending"
	TopupStatusAccepted = "accepted"
	TopupStatusRejected = "rejected"
)

// Account roles used by the auth layer.
const (
	RoleCustomer = "customer"
	RoleWorker   = "worker"
	RoleAdmin    = "admin"
)
