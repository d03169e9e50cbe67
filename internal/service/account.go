package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrWorkerNotFound   = errors.New("worker not found")
)

// AccountService creates and reads the two account kinds.
type AccountService struct {
	store QueryStore
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{store: store}
}

// RegisterCustomer creates a customer account. The referrer reference is
// immutable once set; it can only be supplied here.
func (s *AccountService) RegisterCustomer(ctx context.Context, username string, region domain.Region, referrerID *uuid.UUID) (*models.Customer, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if _, err := domain.ParseRegion(string(region)); err != nil {
		return nil, err
	}
	if referrerID != nil {
		if _, err := s.store.Queries().GetCustomer(ctx, *referrerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("referrer %s not found", *referrerID)
			}
			return nil, fmt.Errorf("load referrer: %w", err)
		}
	}

	customer := &models.Customer{
		ID:         uuid.New(),
		Username:   username,
		Region:     region,
		ReferrerID: referrerID,
	}
	if err := s.store.Queries().CreateCustomer(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("username %q already taken", username)
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

// RegisterWorker creates an active worker account.
func (s *AccountService) RegisterWorker(ctx context.Context, username string, region domain.Region) (*models.Worker, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if _, err := domain.ParseRegion(string(region)); err != nil {
		return nil, err
	}

	worker := &models.Worker{
		ID:       uuid.New(),
		Username: username,
		Region:   region,
		Active:   true,
	}
	if err := s.store.Queries().CreateWorker(ctx, worker); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("username %q already taken", username)
		}
		return nil, fmt.Errorf("create worker: %w", err)
	}
	return worker, nil
}

// GetCustomer loads a customer with all balances.
func (s *AccountService) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.store.Queries().GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

// GetWorker loads a worker with all balances.
func (s *AccountService) GetWorker(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	worker, err := s.store.Queries().GetWorker(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("get worker: %w", err)
	}
	return worker, nil
}

// ListActiveWorkers returns the assignable workers.
func (s *AccountService) ListActiveWorkers(ctx context.Context) ([]models.Worker, error) {
	return s.store.Queries().ListActiveWorkers(ctx)
}
