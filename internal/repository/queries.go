package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate row")

// Queries is the full data access contract. The pgx implementation lives in
// this package; services depend only on the interface so tests can substitute
// an in-memory store.
type Queries interface {
	CustomerQueries
	WorkerQueries
	OrderQueries
	PromoQueries
	BonusQueries
	PayoutQueries
	TopupQueries
	SettingQueries
	IdempotencyQueries

	// CountNegativeBalances counts customer and worker rows holding a
	// negative cash or bonus balance in any currency.
	CountNegativeBalances(ctx context.Context) (int64, error)
}

type CustomerQueries interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	// DebitCustomerBalance decrements a cash balance only when it covers the
	// amount; 0 rows means insufficient funds.
	DebitCustomerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error)
	CreditCustomerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error)
	DebitCustomerBonus(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error)
	CreditCustomerBonus(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error)
	SetCustomerDiscount(ctx context.Context, id uuid.UUID, percent int32) (int64, error)
	// SetReferralCredited flips the one-shot referral flag; 0 rows means it
	// was already credited.
	SetReferralCredited(ctx context.Context, id uuid.UUID) (int64, error)
	SumCustomerBalances(ctx context.Context, currency domain.Currency) (int64, error)
	SumCustomerBonuses(ctx context.Context, currency domain.Currency) (int64, error)
}

type WorkerQueries interface {
	CreateWorker(ctx context.Context, w *models.Worker) error
	GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error)
	GetWorkerForUpdate(ctx context.Context, id uuid.UUID) (*models.Worker, error)
	CreditWorkerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error)
	DebitWorkerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error)
	ListActiveWorkers(ctx context.Context) ([]models.Worker, error)
	SumWorkerBalances(ctx context.Context, currency domain.Currency) (int64, error)
}

// UpdateOrderStatusParams drives the compare-and-set status update. The row
// is only touched when its status still equals FromStatus.
type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	FromStatus string
	ToStatus   string
	// WorkerID, when set, is written to assigned_worker_id in the same update.
	WorkerID *uuid.UUID
}

type OrderQueries interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.Order, error)
	ListOrdersByStatus(ctx context.Context, status string, limit, offset int32) ([]models.Order, error)
	ListOrdersByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int32) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, p UpdateOrderStatusParams) (int64, error)
	// ListPaymentMismatchedOrders returns orders whose payment legs do not
	// sum to the order total.
	ListPaymentMismatchedOrders(ctx context.Context) ([]models.Order, error)
	InsertOrderAudit(ctx context.Context, a *models.OrderAudit) error
	ListOrderAudit(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error)
}

type PromoQueries interface {
	CreatePromoCode(ctx context.Context, p *models.PromoCode) error
	GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	GetPromoCodeForUpdate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	ListPromoCodes(ctx context.Context, limit, offset int32) ([]models.PromoCode, error)
	SetPromoCodeActive(ctx context.Context, id uuid.UUID, active bool) (int64, error)
	// InsertPromoActivation returns ErrDuplicate when the customer already
	// activated this code.
	InsertPromoActivation(ctx context.Context, a *models.PromoActivation) error
	// IncrementPromoActivations bumps the counter only while under the cap;
	// 0 rows means the code is exhausted.
	IncrementPromoActivations(ctx context.Context, id uuid.UUID) (int64, error)
	DeactivateExpiredPromoCodes(ctx context.Context, now time.Time) (int64, error)
	// ListActivationCountMismatches returns codes whose counter diverged
	// from the number of activation rows.
	ListActivationCountMismatches(ctx context.Context) ([]models.PromoCode, error)
}

type BonusQueries interface {
	InsertBonusLedgerEntry(ctx context.Context, e *models.BonusLedgerEntry) error
	ListBonusLedger(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.BonusLedgerEntry, error)
	SumBonusLedger(ctx context.Context, currency domain.Currency) (int64, error)
}

// UpdatePayoutRequestParams drives the payout compare-and-set transition out
// of pending.
type UpdatePayoutRequestParams struct {
	ID           uuid.UUID
	FromStatus   string
	ToStatus     string
	ReceiptRef   *string
	AdminComment *string
}

type PayoutQueries interface {
	CreatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error
	GetPayoutRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	GetPayoutRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListPayoutsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.PayoutRequest, error)
	CountPayoutsByStatus(ctx context.Context, status string) (int64, error)
	UpdatePayoutRequest(ctx context.Context, p UpdatePayoutRequestParams) (int64, error)
}

// UpdateTopupRequestParams mirrors the payout transition shape for top-ups.
type UpdateTopupRequestParams struct {
	ID           uuid.UUID
	FromStatus   string
	ToStatus     string
	AdminComment *string
}

type TopupQueries interface {
	CreateTopupRequest(ctx context.Context, t *models.TopupRequest) error
	GetTopupRequest(ctx context.Context, id uuid.UUID) (*models.TopupRequest, error)
	GetTopupRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.TopupRequest, error)
	ListTopupsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.TopupRequest, error)
	UpdateTopupRequest(ctx context.Context, p UpdateTopupRequestParams) (int64, error)
}

type SettingQueries interface {
	ListSettings(ctx context.Context) ([]models.Setting, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	UpsertSetting(ctx context.Context, s *models.Setting) error
}

type ReserveIdempotencyKeyParams struct {
	Key         string
	RequestHash string
	Method      string
	Path        string
}

type FinalizeIdempotencyKeyParams struct {
	Key            string
	RequestHash    string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
}

type IdempotencyQueries interface {
	GetIdempotencyKey(ctx context.Context, key string) (*models.IdempotencyKey, error)
	// ReserveIdempotencyKey claims a key for the current request; 0 rows
	// means another request holds it.
	ReserveIdempotencyKey(ctx context.Context, p ReserveIdempotencyKeyParams) (int64, error)
	FinalizeIdempotencyKey(ctx context.Context, p FinalizeIdempotencyKeyParams) (*models.IdempotencyKey, error)
	DeleteExpiredIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error)
}
