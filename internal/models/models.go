package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/richboost/boosting-core/internal/domain"
)

// Customer holds one cash and one bonus balance per supported currency.
// Balances are stored as int64 micros and are never negative.
type Customer struct {
	ID               uuid.UUID     `json:"id"`
	Username         string        `json:"username"`
	Region           domain.Region `json:"region"`
	DiscountPercent  int32         `json:"discount_percent"`
	ReferrerID       *uuid.UUID    `json:"referrer_id,omitempty"`
	ReferralCredited bool          `json:"referral_credited"`
	BalanceKGS       int64         `json:"balance_kgs"`
	BalanceKZT       int64         `json:"balance_kzt"`
	BalanceRUB       int64         `json:"balance_rub"`
	BonusKGS         int64         `json:"bonus_kgs"`
	BonusKZT         int64         `json:"bonus_kzt"`
	BonusRUB         int64         `json:"bonus_rub"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Balance returns the cash balance for a currency.
func (c *Customer) Balance(cur domain.Currency) int64 {
	switch cur {
	case domain.KGS:
		return c.BalanceKGS
	case domain.KZT:
		return c.BalanceKZT
	case domain.RUB:
		return c.BalanceRUB
	}
	return 0
}

// Bonus returns the bonus balance for a currency.
func (c *Customer) Bonus(cur domain.Currency) int64 {
	switch cur {
	case domain.KGS:
		return c.BonusKGS
	case domain.KZT:
		return c.BonusKZT
	case domain.RUB:
		return c.BonusRUB
	}
	return 0
}

// AllBalancesZero reports whether every cash balance is zero. The first
// credit that breaks this state fires the referral bonus.
func (c *Customer) AllBalancesZero() bool {
	return c.BalanceKGS == 0 && c.BalanceKZT == 0 && c.BalanceRUB == 0
}

// Worker is a fulfilment account with one balance per currency.
type Worker struct {
	ID         uuid.UUID     `json:"id"`
	Username   string        `json:"username"`
	Region     domain.Region `json:"region"`
	Active     bool          `json:"active"`
	BalanceKGS int64         `json:"balance_kgs"`
	BalanceKZT int64         `json:"balance_kzt"`
	BalanceRUB int64         `json:"balance_rub"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Balance returns the worker balance for a currency.
func (w *Worker) Balance(cur domain.Currency) int64 {
	switch cur {
	case domain.KGS:
		return w.BalanceKGS
	case domain.KZT:
		return w.BalanceKZT
	case domain.RUB:
		return w.BalanceRUB
	}
	return 0
}

// Order is a single purchase. Funds are debited at creation; all further
// money movement happens through status transitions.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	Code              string          `json:"code"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	ServiceType       string          `json:"service_type"`
	DeliveryMode      string          `json:"delivery_mode"`
	Region            domain.Region   `json:"region"`
	CurrentRank       string          `json:"current_rank,omitempty"`
	TargetRank        string          `json:"target_rank,omitempty"`
	CurrentStars      int32           `json:"current_stars,omitempty"`
	TargetStars       int32           `json:"target_stars,omitempty"`
	CoachingHours     int32           `json:"coaching_hours,omitempty"`
	BaseMicros        int64           `json:"base_micros"`
	Multiplier        decimal.Decimal `json:"multiplier"`
	TotalMicros       int64           `json:"total_micros"`
	BonusPaidMicros   int64           `json:"bonus_paid_micros"`
	BalancePaidMicros int64           `json:"balance_paid_micros"`
	Currency          domain.Currency `json:"currency"`
	Status            string          `json:"status"`
	AssignedWorkerID  *uuid.UUID      `json:"assigned_worker_id,omitempty"`
	Details           string          `json:"details,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PromoCode carries either a percent discount or a fixed bonus amount.
type PromoCode struct {
	ID              uuid.UUID       `json:"id"`
	Code            string          `json:"code"`
	Effect          string          `json:"effect"`
	Percent         int32           `json:"percent,omitempty"`
	AmountMicros    int64           `json:"amount_micros,omitempty"`
	Currency        domain.Currency `json:"currency,omitempty"`
	MaxActivations  *int32          `json:"max_activations,omitempty"`
	ActivationCount int32           `json:"activation_count"`
	Active          bool            `json:"active"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PromoActivation is the append-only join row enforcing at-most-one
// activation per (customer, code) pair.
type PromoActivation struct {
	ID          uuid.UUID `json:"id"`
	PromoCodeID uuid.UUID `json:"promo_code_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// BonusLedgerEntry is an append-only audit row for bonus balance movement.
type BonusLedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	AmountMicros int64           `json:"amount_micros"` // signed
	Currency     domain.Currency `json:"currency"`
	Source       string          `json:"source"`
	Comment      string          `json:"comment,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PayoutRequest is a worker withdrawal, settled manually by an admin.
type PayoutRequest struct {
	ID             uuid.UUID       `json:"id"`
	WorkerID       uuid.UUID       `json:"worker_id"`
	AmountMicros   int64           `json:"amount_micros"`
	Currency       domain.Currency `json:"currency"`
	Status         string          `json:"status"`
	PaymentDetails string          `json:"payment_details"`
	ReceiptRef     *string         `json:"receipt_ref,omitempty"`
	AdminComment   *string         `json:"admin_comment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TopupRequest is a customer deposit pending admin approval.
type TopupRequest struct {
	ID           uuid.UUID       `json:"id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	AmountMicros int64           `json:"amount_micros"`
	Currency     domain.Currency `json:"currency"`
	Status       string          `json:"status"`
	ReceiptRef   *string         `json:"receipt_ref,omitempty"`
	AdminComment *string         `json:"admin_comment,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderAudit records one order status change.
type OrderAudit struct {
	ID         int64      `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Event      string     `json:"event"`
	PrevStatus string     `json:"prev_status,omitempty"`
	NextStatus string     `json:"next_status"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Setting is a hot-reloadable key/value configuration row with a
// JSON-encoded value.
type Setting struct {
	Key         string    `json:"key"`
	Value       []byte    `json:"value"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IdempotencyKey stores the recorded response for a replayed mutating
// request. While InProgress is true the original request is still running.
type IdempotencyKey struct {
	Key            string    `json:"key"`
	RequestHash    string    `json:"request_hash"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	ResponseStatus int32     `json:"response_status"`
	ResponseBody   []byte    `json:"response_body,omitempty"`
	ContentType    string    `json:"content_type,omitempty"`
	InProgress     bool      `json:"in_progress"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
