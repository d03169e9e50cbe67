package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
)

// memStore is an in-memory repository.Queries implementation backing the
// service tests. RunInTx snapshots all state and restores it when fn fails,
// matching the rollback the real store gets from Postgres.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	customers   map[uuid.UUID]*models.Customer
	workers     map[uuid.UUID]*models.Worker
	orders      map[uuid.UUID]*models.Order
	promos      map[uuid.UUID]*models.PromoCode
	activations map[string]*models.PromoActivation
	bonusRows   []models.BonusLedgerEntry
	payouts     map[uuid.UUID]*models.PayoutRequest
	topups      map[uuid.UUID]*models.TopupRequest
	auditRows   []models.OrderAudit
	settings    map[string]*models.Setting
	idemKeys    map[string]*models.IdempotencyKey
	auditSeq    int64
}

func newMemStore() *memStore {
	return &memStore{
		customers:   make(map[uuid.UUID]*models.Customer),
		workers:     make(map[uuid.UUID]*models.Worker),
		orders:      make(map[uuid.UUID]*models.Order),
		promos:      make(map[uuid.UUID]*models.PromoCode),
		activations: make(map[string]*models.PromoActivation),
		payouts:     make(map[uuid.UUID]*models.PayoutRequest),
		topups:      make(map[uuid.UUID]*models.TopupRequest),
		settings:    make(map[string]*models.Setting),
		idemKeys:    make(map[string]*models.IdempotencyKey),
	}
}

func (s *memStore) Queries() repository.Queries { return &memQueries{s} }

func (s *memStore) RunInTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.clone()
	if err := fn(&memQueries{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) clone() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := newMemStore()
	for k, v := range s.customers {
		c := *v
		out.customers[k] = &c
	}
	for k, v := range s.workers {
		w := *v
		out.workers[k] = &w
	}
	for k, v := range s.orders {
		o := *v
		out.orders[k] = &o
	}
	for k, v := range s.promos {
		p := *v
		out.promos[k] = &p
	}
	for k, v := range s.activations {
		a := *v
		out.activations[k] = &a
	}
	for k, v := range s.payouts {
		p := *v
		out.payouts[k] = &p
	}
	for k, v := range s.topups {
		t := *v
		out.topups[k] = &t
	}
	for k, v := range s.settings {
		st := *v
		out.settings[k] = &st
	}
	for k, v := range s.idemKeys {
		ik := *v
		out.idemKeys[k] = &ik
	}
	out.bonusRows = append([]models.BonusLedgerEntry(nil), s.bonusRows...)
	out.auditRows = append([]models.OrderAudit(nil), s.auditRows...)
	out.auditSeq = s.auditSeq
	return out
}

func (s *memStore) restore(snap *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = snap.customers
	s.workers = snap.workers
	s.orders = snap.orders
	s.promos = snap.promos
	s.activations = snap.activations
	s.bonusRows = snap.bonusRows
	s.payouts = snap.payouts
	s.topups = snap.topups
	s.settings = snap.settings
	s.idemKeys = snap.idemKeys
	s.auditSeq = snap.auditSeq
}

func activationKey(promoID, customerID uuid.UUID) string {
	return promoID.String() + "/" + customerID.String()
}

type memQueries struct {
	s *memStore
}

var _ repository.Queries = (*memQueries)(nil)

func customerBal(c *models.Customer, cur domain.Currency) *int64 {
	switch cur {
	case domain.KGS:
		return &c.BalanceKGS
	case domain.KZT:
		return &c.BalanceKZT
	default:
		return &c.BalanceRUB
	}
}

func customerBonus(c *models.Customer, cur domain.Currency) *int64 {
	switch cur {
	case domain.KGS:
		return &c.BonusKGS
	case domain.KZT:
		return &c.BonusKZT
	default:
		return &c.BonusRUB
	}
}

func workerBal(w *models.Worker, cur domain.Currency) *int64 {
	switch cur {
	case domain.KGS:
		return &w.BalanceKGS
	case domain.KZT:
		return &w.BalanceKZT
	default:
		return &w.BalanceRUB
	}
}

// -- customers --

func (q *memQueries) CreateCustomer(ctx context.Context, c *models.Customer) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.customers[c.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range q.s.customers {
		if existing.Username == c.Username {
			return repository.ErrDuplicate
		}
	}
	c.CreatedAt = time.Now()
	cp := *c
	q.s.customers[c.ID] = &cp
	return nil
}

func (q *memQueries) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (q *memQueries) GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return q.GetCustomer(ctx, id)
}

func (q *memQueries) DebitCustomerBalance(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok {
		return 0, nil
	}
	bal := customerBal(c, cur)
	if *bal < amount {
		return 0, nil
	}
	*bal -= amount
	return 1, nil
}

func (q *memQueries) CreditCustomerBalance(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok {
		return 0, nil
	}
	*customerBal(c, cur) += amount
	return 1, nil
}

func (q *memQueries) DebitCustomerBonus(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok {
		return 0, nil
	}
	bal := customerBonus(c, cur)
	if *bal < amount {
		return 0, nil
	}
	*bal -= amount
	return 1, nil
}

func (q *memQueries) CreditCustomerBonus(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok {
		return 0, nil
	}
	*customerBonus(c, cur) += amount
	return 1, nil
}

func (q *memQueries) SetCustomerDiscount(ctx context.Context, id uuid.UUID, percent int32) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok {
		return 0, nil
	}
	c.DiscountPercent = percent
	return 1, nil
}

func (q *memQueries) SetReferralCredited(ctx context.Context, id uuid.UUID) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	c, ok := q.s.customers[id]
	if !ok || c.ReferralCredited {
		return 0, nil
	}
	c.ReferralCredited = true
	return 1, nil
}

func (q *memQueries) SumCustomerBalances(ctx context.Context, cur domain.Currency) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var sum int64
	for _, c := range q.s.customers {
		sum += *customerBal(c, cur)
	}
	return sum, nil
}

func (q *memQueries) SumCustomerBonuses(ctx context.Context, cur domain.Currency) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var sum int64
	for _, c := range q.s.customers {
		sum += *customerBonus(c, cur)
	}
	return sum, nil
}

// -- workers --

func (q *memQueries) CreateWorker(ctx context.Context, w *models.Worker) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.workers[w.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range q.s.workers {
		if existing.Username == w.Username {
			return repository.ErrDuplicate
		}
	}
	w.CreatedAt = time.Now()
	cp := *w
	q.s.workers[w.ID] = &cp
	return nil
}

func (q *memQueries) GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	w, ok := q.s.workers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

func (q *memQueries) GetWorkerForUpdate(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	return q.GetWorker(ctx, id)
}

func (q *memQueries) CreditWorkerBalance(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	w, ok := q.s.workers[id]
	if !ok {
		return 0, nil
	}
	*workerBal(w, cur) += amount
	return 1, nil
}

func (q *memQueries) DebitWorkerBalance(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	w, ok := q.s.workers[id]
	if !ok {
		return 0, nil
	}
	bal := workerBal(w, cur)
	if *bal < amount {
		return 0, nil
	}
	*bal -= amount
	return 1, nil
}

func (q *memQueries) ListActiveWorkers(ctx context.Context) ([]models.Worker, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.Worker
	for _, w := range q.s.workers {
		if w.Active {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (q *memQueries) SumWorkerBalances(ctx context.Context, cur domain.Currency) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var sum int64
	for _, w := range q.s.workers {
		sum += *workerBal(w, cur)
	}
	return sum, nil
}

// -- orders --

func (q *memQueries) CreateOrder(ctx context.Context, o *models.Order) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.orders[o.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	q.s.orders[o.ID] = &cp
	return nil
}

func (q *memQueries) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	o, ok := q.s.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (q *memQueries) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, o := range q.s.orders {
		if o.Code == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (q *memQueries) listOrders(match func(*models.Order) bool, newestFirst bool, limit, offset int32) []models.Order {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.Order
	for _, o := range q.s.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if int(offset) >= len(out) {
		return nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out
}

func (q *memQueries) ListPaymentMismatchedOrders(ctx context.Context) ([]models.Order, error) {
	return q.listOrders(func(o *models.Order) bool {
		return o.BonusPaidMicros+o.BalancePaidMicros != o.TotalMicros
	}, false, 1<<30, 0), nil
}

func (q *memQueries) CountNegativeBalances(ctx context.Context) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var count int64
	for _, c := range q.s.customers {
		for _, cur := range domain.Currencies() {
			if *customerBal(c, cur) < 0 || *customerBonus(c, cur) < 0 {
				count++
				break
			}
		}
	}
	for _, w := range q.s.workers {
		for _, cur := range domain.Currencies() {
			if *workerBal(w, cur) < 0 {
				count++
				break
			}
		}
	}
	return count, nil
}

func (q *memQueries) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.Order, error) {
	return q.listOrders(func(o *models.Order) bool { return o.CustomerID == customerID }, true, limit, offset), nil
}

func (q *memQueries) ListOrdersByStatus(ctx context.Context, status string, limit, offset int32) ([]models.Order, error) {
	return q.listOrders(func(o *models.Order) bool { return o.Status == status }, false, limit, offset), nil
}

func (q *memQueries) ListOrdersByWorker(ctx context.Context, workerID uuid.UUID, limit, offset int32) ([]models.Order, error) {
	return q.listOrders(func(o *models.Order) bool {
		return o.AssignedWorkerID != nil && *o.AssignedWorkerID == workerID
	}, true, limit, offset), nil
}

func (q *memQueries) UpdateOrderStatus(ctx context.Context, p repository.UpdateOrderStatusParams) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	o, ok := q.s.orders[p.ID]
	if !ok || o.Status != p.FromStatus {
		return 0, nil
	}
	o.Status = p.ToStatus
	if p.WorkerID != nil {
		o.AssignedWorkerID = p.WorkerID
	}
	o.UpdatedAt = time.Now()
	return 1, nil
}

func (q *memQueries) InsertOrderAudit(ctx context.Context, a *models.OrderAudit) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.auditSeq++
	a.ID = q.s.auditSeq
	a.CreatedAt = time.Now()
	q.s.auditRows = append(q.s.auditRows, *a)
	return nil
}

func (q *memQueries) ListOrderAudit(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.OrderAudit
	for _, a := range q.s.auditRows {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

// -- promo codes --

func (q *memQueries) CreatePromoCode(ctx context.Context, p *models.PromoCode) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, existing := range q.s.promos {
		if existing.Code == p.Code {
			return repository.ErrDuplicate
		}
	}
	p.CreatedAt = time.Now()
	cp := *p
	q.s.promos[p.ID] = &cp
	return nil
}

func (q *memQueries) GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, p := range q.s.promos {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (q *memQueries) GetPromoCodeForUpdate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	p, ok := q.s.promos[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (q *memQueries) ListPromoCodes(ctx context.Context, limit, offset int32) ([]models.PromoCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.PromoCode
	for _, p := range q.s.promos {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueries) SetPromoCodeActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	p, ok := q.s.promos[id]
	if !ok {
		return 0, nil
	}
	p.Active = active
	return 1, nil
}

func (q *memQueries) InsertPromoActivation(ctx context.Context, a *models.PromoActivation) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	key := activationKey(a.PromoCodeID, a.CustomerID)
	if _, ok := q.s.activations[key]; ok {
		return repository.ErrDuplicate
	}
	a.CreatedAt = time.Now()
	cp := *a
	q.s.activations[key] = &cp
	return nil
}

func (q *memQueries) IncrementPromoActivations(ctx context.Context, id uuid.UUID) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	p, ok := q.s.promos[id]
	if !ok {
		return 0, nil
	}
	if p.MaxActivations != nil && p.ActivationCount >= *p.MaxActivations {
		return 0, nil
	}
	p.ActivationCount++
	return 1, nil
}

func (q *memQueries) DeactivateExpiredPromoCodes(ctx context.Context, now time.Time) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var count int64
	for _, p := range q.s.promos {
		if p.Active && p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
			p.Active = false
			count++
		}
	}
	return count, nil
}

func (q *memQueries) ListActivationCountMismatches(ctx context.Context) ([]models.PromoCode, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	counts := make(map[uuid.UUID]int32)
	for _, a := range q.s.activations {
		counts[a.PromoCodeID]++
	}
	var out []models.PromoCode
	for id, p := range q.s.promos {
		if p.ActivationCount != counts[id] {
			out = append(out, *p)
		}
	}
	return out, nil
}

// -- bonus ledger --

func (q *memQueries) InsertBonusLedgerEntry(ctx context.Context, e *models.BonusLedgerEntry) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	e.CreatedAt = time.Now()
	q.s.bonusRows = append(q.s.bonusRows, *e)
	return nil
}

func (q *memQueries) ListBonusLedger(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.BonusLedgerEntry, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.BonusLedgerEntry
	for i := len(q.s.bonusRows) - 1; i >= 0; i-- {
		if q.s.bonusRows[i].CustomerID == customerID {
			out = append(out, q.s.bonusRows[i])
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueries) SumBonusLedger(ctx context.Context, cur domain.Currency) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var sum int64
	for _, e := range q.s.bonusRows {
		if e.Currency == cur {
			sum += e.AmountMicros
		}
	}
	return sum, nil
}

// -- payout requests --

func (q *memQueries) CreatePayoutRequest(ctx context.Context, p *models.PayoutRequest) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.payouts[p.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	q.s.payouts[p.ID] = &cp
	return nil
}

func (q *memQueries) GetPayoutRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	p, ok := q.s.payouts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (q *memQueries) GetPayoutRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return q.GetPayoutRequest(ctx, id)
}

func (q *memQueries) ListPayoutsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.PayoutRequest, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.PayoutRequest
	for _, p := range q.s.payouts {
		if p.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueries) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var count int64
	for _, p := range q.s.payouts {
		if p.Status == status {
			count++
		}
	}
	return count, nil
}

func (q *memQueries) UpdatePayoutRequest(ctx context.Context, p repository.UpdatePayoutRequestParams) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	payout, ok := q.s.payouts[p.ID]
	if !ok || payout.Status != p.FromStatus {
		return 0, nil
	}
	payout.Status = p.ToStatus
	if p.ReceiptRef != nil {
		payout.ReceiptRef = p.ReceiptRef
	}
	if p.AdminComment != nil {
		payout.AdminComment = p.AdminComment
	}
	payout.UpdatedAt = time.Now()
	return 1, nil
}

// -- top-up requests --

func (q *memQueries) CreateTopupRequest(ctx context.Context, t *models.TopupRequest) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.topups[t.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	q.s.topups[t.ID] = &cp
	return nil
}

func (q *memQueries) GetTopupRequest(ctx context.Context, id uuid.UUID) (*models.TopupRequest, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	t, ok := q.s.topups[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (q *memQueries) GetTopupRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.TopupRequest, error) {
	return q.GetTopupRequest(ctx, id)
}

func (q *memQueries) ListTopupsByStatus(ctx context.Context, status string, limit, offset int32) ([]models.TopupRequest, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.TopupRequest
	for _, t := range q.s.topups {
		if t.Status == status {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (q *memQueries) UpdateTopupRequest(ctx context.Context, p repository.UpdateTopupRequestParams) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	topup, ok := q.s.topups[p.ID]
	if !ok || topup.Status != p.FromStatus {
		return 0, nil
	}
	topup.Status = p.ToStatus
	if p.AdminComment != nil {
		topup.AdminComment = p.AdminComment
	}
	topup.UpdatedAt = time.Now()
	return 1, nil
}

// -- settings --

func (q *memQueries) ListSettings(ctx context.Context) ([]models.Setting, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.Setting
	for _, s := range q.s.settings {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (q *memQueries) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	s, ok := q.s.settings[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (q *memQueries) UpsertSetting(ctx context.Context, s *models.Setting) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	s.UpdatedAt = time.Now()
	cp := *s
	q.s.settings[s.Key] = &cp
	return nil
}

// -- idempotency keys --

func (q *memQueries) GetIdempotencyKey(ctx context.Context, key string) (*models.IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	k, ok := q.s.idemKeys[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *k
	return &cp, nil
}

func (q *memQueries) ReserveIdempotencyKey(ctx context.Context, p repository.ReserveIdempotencyKeyParams) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.idemKeys[p.Key]; ok {
		return 0, nil
	}
	now := time.Now()
	q.s.idemKeys[p.Key] = &models.IdempotencyKey{
		Key:         p.Key,
		RequestHash: p.RequestHash,
		Method:      p.Method,
		Path:        p.Path,
		InProgress:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return 1, nil
}

func (q *memQueries) FinalizeIdempotencyKey(ctx context.Context, p repository.FinalizeIdempotencyKeyParams) (*models.IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	k, ok := q.s.idemKeys[p.Key]
	if !ok || k.RequestHash != p.RequestHash {
		return nil, pgx.ErrNoRows
	}
	k.ResponseStatus = p.ResponseStatus
	k.ResponseBody = p.ResponseBody
	k.ContentType = p.ContentType
	k.InProgress = false
	k.UpdatedAt = time.Now()
	cp := *k
	return &cp, nil
}

func (q *memQueries) DeleteExpiredIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var count int64
	for key, k := range q.s.idemKeys {
		if !k.InProgress && k.UpdatedAt.Before(olderThan) {
			delete(q.s.idemKeys, key)
			count++
		}
	}
	return count, nil
}

// -- shared fixtures --

func seedCustomer(s *memStore, region domain.Region, cash, bonus int64) *models.Customer {
	c := &models.Customer{
		ID:       uuid.New(),
		Username: fmt.Sprintf("customer-%s", uuid.New().String()[:8]),
		Region:   region,
	}
	cur, _ := domain.CurrencyForRegion(region)
	*customerBal(c, cur) = cash
	*customerBonus(c, cur) = bonus
	_ = (&memQueries{s}).CreateCustomer(context.Background(), c)
	return c
}

func seedWorker(s *memStore, region domain.Region, balance int64) *models.Worker {
	w := &models.Worker{
		ID:       uuid.New(),
		Username: fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		Region:   region,
		Active:   true,
	}
	cur, _ := domain.CurrencyForRegion(region)
	*workerBal(w, cur) = balance
	_ = (&memQueries{s}).CreateWorker(context.Background(), w)
	return w
}

// staticConverter implements Converter with fixed pairwise rates. A nil
// rates map means every pair converts 1:1.
type staticConverter struct {
	rates    map[[2]domain.Currency]decimal.Decimal
	fallback bool
	err      error
}

func (c *staticConverter) Rate(ctx context.Context, from, to domain.Currency) (decimal.Decimal, bool, error) {
	if c.err != nil {
		return decimal.Decimal{}, false, c.err
	}
	if from == to {
		return decimal.NewFromInt(1), false, nil
	}
	if r, ok := c.rates[[2]domain.Currency{from, to}]; ok {
		return r, c.fallback, nil
	}
	return decimal.NewFromInt(1), c.fallback, nil
}

func (c *staticConverter) Convert(ctx context.Context, m domain.Money, target domain.Currency) (domain.Money, bool, error) {
	rate, usedFallback, err := c.Rate(ctx, m.Currency, target)
	if err != nil {
		return domain.Money{}, usedFallback, err
	}
	return m.Convert(target, rate), usedFallback, nil
}
