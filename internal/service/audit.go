package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
)

// AuditService writes immutable order history entries.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record inside the caller's
// transaction.
func (s *AuditService) Write(ctx context.Context, q repository.Queries, orderID uuid.UUID, actorID *uuid.UUID, event, prevStatus, nextStatus, note string) error {
	if err := q.InsertOrderAudit(ctx, &models.OrderAudit{
		OrderID:    orderID,
		ActorID:    actorID,
		Event:      event,
		PrevStatus: prevStatus,
		NextStatus: nextStatus,
		Note:       note,
	}); err != nil {
		return fmt.Errorf("insert order audit: %w", err)
	}
	return nil
}

// History lists the recorded events for an order, oldest first.
func (s *AuditService) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderAudit, error) {
	return s.store.Queries().ListOrderAudit(ctx, orderID)
}
