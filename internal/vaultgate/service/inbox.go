package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/google/uuid"
)

const maxInboxPage = 100

// InboxService reads the database notification channel.
type InboxService struct {
	Store store.Store
	Clock Clock
}

// List returns the newest notifications of a user first.
func (s *InboxService) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > maxInboxPage {
		limit = maxInboxPage
	}
	list, err := s.Store.Notifications().ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// MarkRead stamps a notification as read. Already read entries keep their
// original stamp.
func (s *InboxService) MarkRead(ctx context.Context, userID, id string) error {
	nid, err := uuid.Parse(id)
	if err != nil {
		return invalidField("id", "must be a UUID")
	}
	if err := s.Store.Notifications().MarkNotificationRead(ctx, userID, nid, s.Clock.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return precondition("Notification not found.")
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
