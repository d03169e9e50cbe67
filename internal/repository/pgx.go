package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxQueries struct {
	db DBTX
}

var _ Queries = (*pgxQueries)(nil)

const uniqueViolationCode = "23505"

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicate
	}
	return err
}

// balanceColumn resolves the per-currency cash column. The whitelist keeps
// column names out of caller control.
func balanceColumn(cur domain.Currency) (string, error) {
	switch cur {
	case domain.KGS:
		return "balance_kgs", nil
	case domain.KZT:
		return "balance_kzt", nil
	case domain.RUB:
		return "balance_rub", nil
	}
	return "", fmt.Errorf("no balance column for currency %q", cur)
}

func bonusColumn(cur domain.Currency) (string, error) {
	switch cur {
	case domain.KGS:
		return "bonus_kgs", nil
	case domain.KZT:
		return "bonus_kzt", nil
	case domain.RUB:
		return "bonus_rub", nil
	}
	return "", fmt.Errorf("no bonus column for currency %q", cur)
}

// -- customers --

const customerColumns = `id, username, region, discount_percent, referrer_id, referral_credited,
	balance_kgs, balance_kzt, balance_rub, bonus_kgs, bonus_kzt, bonus_rub, created_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	c := &models.Customer{}
	err := row.Scan(&c.ID, &c.Username, &c.Region, &c.DiscountPercent, &c.ReferrerID, &c.ReferralCredited,
		&c.BalanceKGS, &c.BalanceKZT, &c.BalanceRUB, &c.BonusKGS, &c.BonusKZT, &c.BonusRUB, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (q *pgxQueries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `INSERT INTO customers (id, username, region, discount_percent, referrer_id, referral_credited,
		balance_kgs, balance_kzt, balance_rub, bonus_kgs, bonus_kzt, bonus_rub, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, c.ID, c.Username, c.Region, c.DiscountPercent, c.ReferrerID, c.ReferralCredited,
		c.BalanceKGS, c.BalanceKZT, c.BalanceRUB, c.BonusKGS, c.BonusKZT, c.BonusRUB).Scan(&c.CreatedAt)
	if err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

func (q *pgxQueries) GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgxQueries) DebitCustomerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE customers SET `+col+` = `+col+` - $1 WHERE id = $2 AND `+col+` >= $1`,
		amountMicros, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) CreditCustomerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, `UPDATE customers SET `+col+` = `+col+` + $1 WHERE id = $2`, amountMicros, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) DebitCustomerBonus(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error) {
	col, err := bonusColumn(currency)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE customers SET `+col+` = `+col+` - $1 WHERE id = $2 AND `+col+` >= $1`,
		amountMicros, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) CreditCustomerBonus(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error) {
	col, err := bonusColumn(currency)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, `UPDATE customers SET `+col+` = `+col+` + $1 WHERE id = $2`, amountMicros, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) SetCustomerDiscount(ctx context.Context, id uuid.UUID, percent int32) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE customers SET discount_percent = $1 WHERE id = $2`, percent, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) SetReferralCredited(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE customers SET referral_credited = TRUE WHERE id = $1 AND referral_credited = FALSE`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) SumCustomerBalances(ctx context.Context, currency domain.Currency) (int64, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(`+col+`), 0) FROM customers`).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (q *pgxQueries) SumCustomerBonuses(ctx context.Context, currency domain.Currency) (int64, error) {
	col, err := bonusColumn(currency)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(`+col+`), 0) FROM customers`).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// -- workers --

const workerColumns = `id, username, region, active, balance_kgs, balance_kzt, balance_rub, created_at`

func scanWorker(row pgx.Row) (*models.Worker, error) {
	w := &models.Worker{}
	err := row.Scan(&w.ID, &w.Username, &w.Region, &w.Active, &w.BalanceKGS, &w.BalanceKZT, &w.BalanceRUB, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (q *pgxQueries) CreateWorker(ctx context.Context, w *models.Worker) error {
	query := `INSERT INTO workers (id, username, region, active, balance_kgs, balance_kzt, balance_rub, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, w.ID, w.Username, w.Region, w.Active, w.BalanceKGS, w.BalanceKZT, w.BalanceRUB).Scan(&w.CreatedAt)
	if err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	return scanWorker(q.db.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
}

func (q *pgxQueries) GetWorkerForUpdate(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	return scanWorker(q.db.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgxQueries) CreditWorkerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx, `UPDATE workers SET `+col+` = `+col+` + $1 WHERE id = $2`, amountMicros, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) DebitWorkerBalance(ctx context.Context, id uuid.UUID, currency domain.Currency, amountMicros int64) (int64, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	tag, err := q.db.Exec(ctx,
		`UPDATE workers SET `+col+` = `+col+` - $1 WHERE id = $2 AND `+col+` >= $1`,
		amountMicros, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) ListActiveWorkers(ctx context.Context) ([]models.Worker, error) {
	rows, err := q.db.Query(ctx, `SELECT `+workerColumns+` FROM workers WHERE active ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

func (q *pgxQueries) SumWorkerBalances(ctx context.Context, currency domain.Currency) (int64, error) {
	col, err := balanceColumn(currency)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(`+col+`), 0) FROM workers`).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (q *pgxQueries) CountNegativeBalances(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM customers
		          WHERE balance_kgs < 0 OR balance_kzt < 0 OR balance_rub < 0
		             OR bonus_kgs < 0 OR bonus_kzt < 0 OR bonus_rub < 0)
		      + (SELECT COUNT(*) FROM workers
		          WHERE balance_kgs < 0 OR balance_kzt < 0 OR balance_rub < 0)`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// -- orders --

const orderColumns = `id, code, customer_id, service_type, delivery_mode, region,
	current_rank, target_rank, current_stars, target_stars, coaching_hours,
	base_micros, multiplier, total_micros, bonus_paid_micros, balance_paid_micros,
	currency, status, assigned_worker_id, details, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(&o.ID, &o.Code, &o.CustomerID, &o.ServiceType, &o.DeliveryMode, &o.Region,
		&o.CurrentRank, &o.TargetRank, &o.CurrentStars, &o.TargetStars, &o.CoachingHours,
		&o.BaseMicros, &o.Multiplier, &o.TotalMicros, &o.BonusPaidMicros, &o.BalancePaidMicros,
		&o.Currency, &o.Status, &o.AssignedWorkerID, &o.Details, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (q *pgxQueries) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `INSERT INTO orders (id, code, customer_id, service_type, delivery_mode, region,
		current_rank, target_rank, current_stars, target_stars, coaching_hours,
		base_micros, multiplier, total_micros, bonus_paid_micros, balance_paid_micros,
		currency, status, assigned_worker_id, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query, o.ID, o.Code, o.CustomerID, o.ServiceType, o.DeliveryMode, o.Region,
		o.CurrentRank, o.TargetRank, o.CurrentStars, o.TargetStars, o.CoachingHours,
		o.BaseMicros, o.Multiplier, o.TotalMicros, o.BonusPaidMicros, o.BalancePaidMicros,
		o.Currency, o.Status, o.AssignedWorkerID, o.Details).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (q *pgxQueries) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE code = $1`, code))
}

func (q *pgxQueries) listOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (q *pgxQueries) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.Order, error) {
	return q.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
}

func (q *pgxQueries) ListOrdersByStatus(ctx context.Context, status string, limit, offset int32) ([]models.Order, error) {
	return q.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		status, limit, offset)
}

func (q *pgxQueries) ListOrdersByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int32) ([]models.Order, error) {
	return q.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE assigned_worker_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		workerID, limit, offset)
}

func (q *pgxQueries) ListPaymentMismatchedOrders(ctx context.Context) ([]models.Order, error) {
	return q.listOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE bonus_paid_micros + balance_paid_micros <> total_micros ORDER BY created_at ASC`)
}

func (q *pgxQueries) UpdateOrderStatus(ctx context.Context, p UpdateOrderStatusParams) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if p.WorkerID != nil {
		tag, err = q.db.Exec(ctx,
			`UPDATE orders SET status = $1, assigned_worker_id = $2, updated_at = NOW() WHERE id = $3 AND status = $4`,
			p.ToStatus, *p.WorkerID, p.ID, p.FromStatus)
	} else {
		tag, err = q.db.Exec(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			p.ToStatus, p.ID, p.FromStatus)
	}
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) InsertOrderAudit(ctx context.Context, a *models.OrderAudit) error {
	query := `INSERT INTO order_audit (order_id, actor_id, event, prev_status, next_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`
	return q.db.QueryRow(ctx, query, a.OrderID, a.ActorID, a.Event, a.PrevStatus, a.NextStatus, a.Note).
		Scan(&a.ID, &a.CreatedAt)
}

func (q *pgxQueries) ListOrderAudit(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, order_id, actor_id, event, prev_status, next_status, note, created_at
		 FROM order_audit WHERE order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.OrderAudit
	for rows.Next() {
		var a models.OrderAudit
		if err := rows.Scan(&a.ID, &a.OrderID, &a.ActorID, &a.Event, &a.PrevStatus, &a.NextStatus, &a.Note, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// -- promo codes --

const promoColumns = `id, code, effect, percent, amount_micros, currency, max_activations,
	activation_count, active, expires_at, comment, created_at`

func scanPromo(row pgx.Row) (*models.PromoCode, error) {
	p := &models.PromoCode{}
	err := row.Scan(&p.ID, &p.Code, &p.Effect, &p.Percent, &p.AmountMicros, &p.Currency, &p.MaxActivations,
		&p.ActivationCount, &p.Active, &p.ExpiresAt, &p.Comment, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (q *pgxQueries) CreatePromoCode(ctx context.Context, p *models.PromoCode) error {
	query := `INSERT INTO promo_codes (id, code, effect, percent, amount_micros, currency, max_activations,
		activation_count, active, expires_at, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()) RETURNING created_at`
	err := q.db.QueryRow(ctx, query, p.ID, p.Code, p.Effect, p.Percent, p.AmountMicros, p.Currency,
		p.MaxActivations, p.ActivationCount, p.Active, p.ExpiresAt, p.Comment).Scan(&p.CreatedAt)
	if err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return scanPromo(q.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
}

func (q *pgxQueries) GetPromoCodeForUpdate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	return scanPromo(q.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgxQueries) ListPromoCodes(ctx context.Context, limit, offset int32) ([]models.PromoCode, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []models.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *p)
	}
	return codes, rows.Err()
}

func (q *pgxQueries) SetPromoCodeActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE promo_codes SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) InsertPromoActivation(ctx context.Context, a *models.PromoActivation) error {
	query := `INSERT INTO promo_activations (id, promo_code_id, customer_id, created_at)
		VALUES ($1, $2, $3, NOW()) RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, a.ID, a.PromoCodeID, a.CustomerID).Scan(&a.CreatedAt); err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) IncrementPromoActivations(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE promo_codes SET activation_count = activation_count + 1
		 WHERE id = $1 AND (max_activations IS NULL OR activation_count < max_activations)`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) DeactivateExpiredPromoCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE promo_codes SET active = FALSE WHERE active AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) ListActivationCountMismatches(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+promoColumns+` FROM promo_codes p
		 WHERE p.activation_count <> (SELECT COUNT(*) FROM promo_activations a WHERE a.promo_code_id = p.id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []models.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *p)
	}
	return codes, rows.Err()
}

// -- bonus ledger --

func (q *pgxQueries) InsertBonusLedgerEntry(ctx context.Context, e *models.BonusLedgerEntry) error {
	query := `INSERT INTO bonus_ledger (id, customer_id, amount_micros, currency, source, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	return q.db.QueryRow(ctx, query, e.ID, e.CustomerID, e.AmountMicros, e.Currency, e.Source, e.Comment).
		Scan(&e.CreatedAt)
}

func (q *pgxQueries) ListBonusLedger(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.BonusLedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, customer_id, amount_micros, currency, source, comment, created_at
		 FROM bonus_ledger WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.BonusLedgerEntry
	for rows.Next() {
		var e models.BonusLedgerEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.AmountMicros, &e.Currency, &e.Source, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *pgxQueries) SumBonusLedger(ctx context.Context, currency domain.Currency) (int64, error) {
	var sum int64
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_micros), 0) FROM bonus_ledger WHERE currency = $1`, currency).Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// -- payout requests --

const payoutColumns = `id, worker_id, amount_micros, currency, status, payment_details,
	receipt_ref, admin_comment, created_at, updated_at`

func scanPayout(row pgx.Row) (*models.PayoutRequest, error) {
	p := &models.PayoutRequest{}
	err := row.Scan(&p.ID, &p.WorkerID, &p.AmountMicros, &p.Currency, &p.Status, &p.PaymentDetails,
		&p.ReceiptRef, &p.AdminComment, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (q *pgxQueries) CreatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error {
	query := `INSERT INTO payout_requests (id, worker_id, amount_micros, currency, status, payment_details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query, p.ID, p.WorkerID, p.AmountMicros, p.Currency, p.Status, p.PaymentDetails).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) GetPayoutRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return scanPayout(q.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id))
}

func (q *pgxQueries) GetPayoutRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return scanPayout(q.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgxQueries) ListPayoutsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.PayoutRequest, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []models.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (q *pgxQueries) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM payout_requests WHERE status = $1`, status).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (q *pgxQueries) UpdatePayoutRequest(ctx context.Context, p UpdatePayoutRequestParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE payout_requests SET status = $1, receipt_ref = COALESCE($2, receipt_ref),
		 admin_comment = COALESCE($3, admin_comment), updated_at = NOW()
		 WHERE id = $4 AND status = $5`,
		p.ToStatus, p.ReceiptRef, p.AdminComment, p.ID, p.FromStatus)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// -- top-up requests --

const topupColumns = `id, customer_id, amount_micros, currency, status, receipt_ref, admin_comment, created_at, updated_at`

func scanTopup(row pgx.Row) (*models.TopupRequest, error) {
	t := &models.TopupRequest{}
	err := row.Scan(&t.ID, &t.CustomerID, &t.AmountMicros, &t.Currency, &t.Status,
		&t.ReceiptRef, &t.AdminComment, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (q *pgxQueries) CreateTopupRequest(ctx context.Context, t *models.TopupRequest) error {
	query := `INSERT INTO topup_requests (id, customer_id, amount_micros, currency, status, receipt_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query, t.ID, t.CustomerID, t.AmountMicros, t.Currency, t.Status, t.ReceiptRef).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapInsertErr(err)
	}
	return nil
}

func (q *pgxQueries) GetTopupRequest(ctx context.Context, id uuid.UUID) (*models.TopupRequest, error) {
	return scanTopup(q.db.QueryRow(ctx, `SELECT `+topupColumns+` FROM topup_requests WHERE id = $1`, id))
}

func (q *pgxQueries) GetTopupRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.TopupRequest, error) {
	return scanTopup(q.db.QueryRow(ctx, `SELECT `+topupColumns+` FROM topup_requests WHERE id = $1 FOR UPDATE`, id))
}

func (q *pgxQueries) ListTopupsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.TopupRequest, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+topupColumns+` FROM topup_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topups []models.TopupRequest
	for rows.Next() {
		t, err := scanTopup(rows)
		if err != nil {
			return nil, err
		}
		topups = append(topups, *t)
	}
	return topups, rows.Err()
}

func (q *pgxQueries) UpdateTopupRequest(ctx context.Context, p UpdateTopupRequestParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE topup_requests SET status = $1, admin_comment = COALESCE($2, admin_comment), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		p.ToStatus, p.AdminComment, p.ID, p.FromStatus)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// -- settings --

func (q *pgxQueries) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := q.db.Query(ctx,
		`SELECT key, value, description, category, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.Category, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (q *pgxQueries) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	s := &models.Setting{}
	err := q.db.QueryRow(ctx,
		`SELECT key, value, description, category, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.Description, &s.Category, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (q *pgxQueries) UpsertSetting(ctx context.Context, s *models.Setting) error {
	query := `INSERT INTO settings (key, value, description, category, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), settings.description),
			category = COALESCE(NULLIF(EXCLUDED.category, ''), settings.category),
			updated_at = NOW()
		RETURNING updated_at`
	return q.db.QueryRow(ctx, query, s.Key, s.Value, s.Description, s.Category).Scan(&s.UpdatedAt)
}

// -- idempotency keys --

const idempotencyColumns = `idempotency_key, request_hash, method, path,
	response_status, response_body, content_type, in_progress, created_at, updated_at`

func scanIdempotencyKey(row pgx.Row) (*models.IdempotencyKey, error) {
	k := &models.IdempotencyKey{}
	err := row.Scan(&k.Key, &k.RequestHash, &k.Method, &k.Path,
		&k.ResponseStatus, &k.ResponseBody, &k.ContentType, &k.InProgress, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (q *pgxQueries) GetIdempotencyKey(ctx context.Context, key string) (*models.IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE idempotency_key = $1`, key))
}

func (q *pgxQueries) ReserveIdempotencyKey(ctx context.Context, p ReserveIdempotencyKeyParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		ON CONFLICT (idempotency_key) DO NOTHING`,
		p.Key, p.RequestHash, p.Method, p.Path)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *pgxQueries) FinalizeIdempotencyKey(ctx context.Context, p FinalizeIdempotencyKeyParams) (*models.IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx,
		`UPDATE idempotency_keys SET response_status = $1, response_body = $2, content_type = $3,
			in_progress = FALSE, updated_at = NOW()
		WHERE idempotency_key = $4 AND request_hash = $5
		RETURNING `+idempotencyColumns,
		p.ResponseStatus, p.ResponseBody, p.ContentType, p.Key, p.RequestHash))
}

func (q *pgxQueries) DeleteExpiredIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE in_progress = FALSE AND updated_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
