package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/observability"
	"github.com/richboost/boosting-core/internal/repository"
)

var ErrOrderNotFound = errors.New("order not found")

// Converter re-denominates money across currencies. Satisfied by
// rates.Cache; the boolean reports whether the static fallback table was
// used.
type Converter interface {
	Convert(ctx context.Context, m domain.Money, target domain.Currency) (domain.Money, bool, error)
	Rate(ctx context.Context, from, to domain.Currency) (decimal.Decimal, bool, error)
}

// orderTransitions maps a status to the statuses reachable from it.
var orderTransitions = map[string]map[string]struct{}{
	domain.OrderStatusPending: {
		domain.OrderStatusConfirmed: {},
		domain.OrderStatusCancelled: {},
	},
	domain.OrderStatusConfirmed: {
		domain.OrderStatusInProgress: {},
		domain.OrderStatusCancelled:  {},
	},
	domain.OrderStatusInProgress: {
		domain.OrderStatusPaused:        {},
		domain.OrderStatusPendingReview: {},
		domain.OrderStatusCancelled:     {},
	},
	domain.OrderStatusPaused: {
		domain.OrderStatusInProgress: {},
		domain.OrderStatusCancelled:  {},
	},
	domain.OrderStatusPendingReview: {
		domain.OrderStatusCompleted:  {},
		domain.OrderStatusInProgress: {},
	},
	domain.OrderStatusCompleted: {},
	domain.OrderStatusCancelled: {},
}

func canTransitionOrder(from, to string) bool {
	next, ok := orderTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// OrderService owns the order lifecycle and the money movements tied to
// each transition.
type OrderService struct {
	store     QueryStore
	pricing   *PricingService
	settings  *SettingsService
	converter Converter
	audit     *AuditService
}

func NewOrderService(store QueryStore, pricing *PricingService, settings *SettingsService, converter Converter) *OrderService {
	return &OrderService{
		store:     store,
		pricing:   pricing,
		settings:  settings,
		converter: converter,
		audit:     NewAuditService(store),
	}
}

// CreateOrderRequest carries the customer's order parameters. BonusMicros
// is the part of the total the customer wants paid from bonus credits; it
// is clamped to the total.
type CreateOrderRequest struct {
	CustomerID    uuid.UUID
	ServiceType   string
	DeliveryMode  string
	Region        domain.Region
	Current       RankPosition
	Target        RankPosition
	CoachingHours int32
	BonusMicros   int64
	Details       string
}

// Create prices and persists a new order, debiting the customer up front.
// An armed discount is applied to the total exactly once and cleared in the
// same transaction as the debit.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if req.BonusMicros < 0 {
		return nil, fmt.Errorf("invalid bonus amount: %d", req.BonusMicros)
	}

	quote, err := s.pricing.Quote(QuoteParams{
		ServiceType:   req.ServiceType,
		DeliveryMode:  req.DeliveryMode,
		Region:        req.Region,
		Current:       req.Current,
		Target:        req.Target,
		CoachingHours: req.CoachingHours,
	})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:           uuid.New(),
		Code:         newOrderCode(),
		CustomerID:   req.CustomerID,
		ServiceType:  req.ServiceType,
		DeliveryMode: req.DeliveryMode,
		Region:       req.Region,
		BaseMicros:   quote.BaseMicros,
		Multiplier:   quote.Multiplier,
		Currency:     quote.Currency,
		Status:       domain.OrderStatusPending,
		Details:      req.Details,
	}
	if req.ServiceType == domain.ServiceRankBoost {
		order.CurrentRank = req.Current.Tier
		order.TargetRank = req.Target.Tier
		order.CurrentStars = rankDetail(req.Current)
		order.TargetStars = rankDetail(req.Target)
	} else {
		order.CoachingHours = req.CoachingHours
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		customer, err := q.GetCustomerForUpdate(ctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("customer %s not found", req.CustomerID)
			}
			return fmt.Errorf("load customer: %w", err)
		}

		total := quote.TotalMicros
		var note string
		if customer.DiscountPercent > 0 {
			total = total * int64(100-customer.DiscountPercent) / 100
			note = fmt.Sprintf("discount %d%% applied", customer.DiscountPercent)
			rows, err := q.SetCustomerDiscount(ctx, req.CustomerID, 0)
			if err != nil {
				return fmt.Errorf("clear customer discount: %w", err)
			}
			if err := requireExactlyOne(rows, "clear customer discount"); err != nil {
				return err
			}
		}

		bonusPart := min(req.BonusMicros, total)
		cashPart := total - bonusPart

		if bonusPart > 0 {
			if err := debitCustomerBonus(ctx, q, req.CustomerID, quote.Currency, bonusPart,
				domain.BonusSourceOrderPayment, "order "+order.Code); err != nil {
				return err
			}
		}
		if cashPart > 0 {
			if err := debitCustomerCash(ctx, q, req.CustomerID, quote.Currency, cashPart); err != nil {
				return err
			}
		}

		order.TotalMicros = total
		order.BonusPaidMicros = bonusPart
		order.BalancePaidMicros = cashPart
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		return s.audit.Write(ctx, q, order.ID, nil, "created", "", domain.OrderStatusPending, note)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("code", order.Code),
		zap.Int64("total_micros", order.TotalMicros),
		zap.String("currency", string(order.Currency)))
	return order, nil
}

// rankDetail packs the non-tier part of a position into the stars column:
// division for the regular tiers, stars for mythic.
func rankDetail(p RankPosition) int32 {
	if p.Tier == TierMythic {
		return p.Stars
	}
	return p.Division
}

// Assign moves a pending order to confirmed and pins the worker.
func (s *OrderService) Assign(ctx context.Context, orderID, workerID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to:       domain.OrderStatusConfirmed,
		event:    "worker_assigned",
		actorID:  actorID,
		workerID: &workerID,
		prepare: func(ctx context.Context, q repository.Queries, order *models.Order) (string, error) {
			worker, err := q.GetWorker(ctx, workerID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return "", fmt.Errorf("worker %s not found", workerID)
				}
				return "", fmt.Errorf("load worker: %w", err)
			}
			if !worker.Active {
				return "", fmt.Errorf("worker %s is not active", workerID)
			}
			return "assigned to " + worker.Username, nil
		},
	})
}

// Start moves a confirmed order into progress.
func (s *OrderService) Start(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to: domain.OrderStatusInProgress, event: "started", actorID: actorID,
	})
}

// Pause suspends an in-progress order.
func (s *OrderService) Pause(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to: domain.OrderStatusPaused, event: "paused", actorID: actorID,
	})
}

// Resume puts a paused order back in progress.
func (s *OrderService) Resume(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to: domain.OrderStatusInProgress, event: "resumed", actorID: actorID,
	})
}

// SubmitReview marks the work done and waiting for admin approval.
func (s *OrderService) SubmitReview(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to: domain.OrderStatusPendingReview, event: "review_submitted", actorID: actorID,
	})
}

// RejectReview sends the order back to the worker; no money moves.
func (s *OrderService) RejectReview(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason string) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to: domain.OrderStatusInProgress, event: "review_rejected", actorID: actorID,
		prepare: func(context.Context, repository.Queries, *models.Order) (string, error) {
			return reason, nil
		},
	})
}

// Complete approves reviewed work and credits the assigned worker their
// share. When the worker's region currency differs from the order currency
// the share is converted; if conversion is impossible the credit falls back
// to the order currency and the audit note records it.
func (s *OrderService) Complete(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	snap := s.settings.Snapshot()
	return s.transition(ctx, orderID, transitionRequest{
		to:    domain.OrderStatusCompleted,
		event: "completed", actorID: actorID,
		finalize: func(ctx context.Context, q repository.Queries, order *models.Order) (string, error) {
			if order.AssignedWorkerID == nil {
				return "", fmt.Errorf("order %s has no assigned worker", order.Code)
			}
			worker, err := q.GetWorker(ctx, *order.AssignedWorkerID)
			if err != nil {
				return "", fmt.Errorf("load assigned worker: %w", err)
			}

			shareMicros := order.TotalMicros * int64(snap.WorkerSharePercent) / 100
			if shareMicros <= 0 {
				return "no worker share", nil
			}

			payout := domain.NewMoney(shareMicros, order.Currency)
			note := fmt.Sprintf("worker credited %s", payout)

			workerCurrency, err := domain.CurrencyForRegion(worker.Region)
			if err != nil {
				return "", err
			}
			if workerCurrency != order.Currency {
				converted, usedFallback, convErr := s.converter.Convert(ctx, payout, workerCurrency)
				switch {
				case convErr != nil:
					zap.L().Warn("worker share conversion failed, crediting order currency",
						zap.Error(convErr), zap.String("order_id", order.ID.String()))
					note = fmt.Sprintf("conversion to %s unavailable, worker credited %s", workerCurrency, payout)
				case usedFallback:
					payout = converted
					note = fmt.Sprintf("worker credited %s (fallback rate)", payout)
				default:
					payout = converted
					note = fmt.Sprintf("worker credited %s", payout)
				}
			}

			if err := creditWorker(ctx, q, worker.ID, payout.Currency, payout.Amount); err != nil {
				return "", err
			}
			return note, nil
		},
	})
}

// Cancel aborts an order and refunds both payment legs to where they came
// from. Terminal orders cannot be cancelled. Customers may only cancel
// orders still pending; once a worker is confirmed the cancel becomes an
// admin call (asAdmin true).
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason string, asAdmin bool) (*models.Order, error) {
	return s.transition(ctx, orderID, transitionRequest{
		to:    domain.OrderStatusCancelled,
		event: "cancelled", actorID: actorID,
		prepare: func(ctx context.Context, q repository.Queries, order *models.Order) (string, error) {
			if !asAdmin && order.Status != domain.OrderStatusPending {
				return "", fmt.Errorf("%w: only an admin may cancel a %s order", domain.ErrInvalidTransition, order.Status)
			}
			return "", nil
		},
		finalize: func(ctx context.Context, q repository.Queries, order *models.Order) (string, error) {
			if order.BalancePaidMicros > 0 {
				rows, err := q.CreditCustomerBalance(ctx, order.CustomerID, order.Currency, order.BalancePaidMicros)
				if err != nil {
					return "", fmt.Errorf("refund customer balance: %w", err)
				}
				if err := requireExactlyOne(rows, "refund customer balance"); err != nil {
					return "", err
				}
			}
			if order.BonusPaidMicros > 0 {
				if err := creditCustomerBonus(ctx, q, order.CustomerID, order.Currency, order.BonusPaidMicros,
					domain.BonusSourceOrderPayment, "refund order "+order.Code); err != nil {
					return "", err
				}
			}
			return reason, nil
		},
	})
}

// transitionRequest describes a single status change. prepare runs before
// the compare-and-set and contributes to the audit note; finalize runs
// after the CAS succeeded, inside the same transaction, and carries the
// money effects.
type transitionRequest struct {
	to       string
	event    string
	actorID  *uuid.UUID
	workerID *uuid.UUID
	prepare  func(ctx context.Context, q repository.Queries, order *models.Order) (string, error)
	finalize func(ctx context.Context, q repository.Queries, order *models.Order) (string, error)
}

func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, req transitionRequest) (*models.Order, error) {
	var result *models.Order
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order: %w", err)
		}

		if !canTransitionOrder(order.Status, req.to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, req.to)
		}

		var note string
		if req.prepare != nil {
			note, err = req.prepare(ctx, q, order)
			if err != nil {
				return err
			}
		}

		prev := order.Status
		rows, err := q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
			ID:         order.ID,
			FromStatus: prev,
			ToStatus:   req.to,
			WorkerID:   req.workerID,
		})
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if rows == 0 {
			// Lost the race against a concurrent transition.
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, prev, req.to)
		}

		order.Status = req.to
		if req.workerID != nil {
			order.AssignedWorkerID = req.workerID
		}

		if req.finalize != nil {
			finalNote, err := req.finalize(ctx, q, order)
			if err != nil {
				return err
			}
			if finalNote != "" {
				note = finalNote
			}
		}

		if err := s.audit.Write(ctx, q, order.ID, req.actorID, req.event, prev, req.to, note); err != nil {
			return err
		}
		observability.IncrementOrderTransition(prev, req.to)
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get loads an order by ID.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Queries().GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListByCustomer pages a customer's orders, newest first.
func (s *OrderService) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.Order, error) {
	return s.store.Queries().ListOrdersByCustomer(ctx, customerID, clampLimit(limit), max(offset, 0))
}

// ListByWorker pages a worker's assigned orders, newest first.
func (s *OrderService) ListByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int32) ([]models.Order, error) {
	return s.store.Queries().ListOrdersByWorker(ctx, workerID, clampLimit(limit), max(offset, 0))
}

// ListByStatus pages orders in a given status, oldest first.
func (s *OrderService) ListByStatus(ctx context.Context, status string, limit, offset int32) ([]models.Order, error) {
	return s.store.Queries().ListOrdersByStatus(ctx, status, clampLimit(limit), max(offset, 0))
}

// History returns the audit trail of an order.
func (s *OrderService) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error) {
	return s.audit.History(ctx, orderID)
}

func clampLimit(limit int32) int32 {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
