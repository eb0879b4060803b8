package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/google/uuid"
)

// DatabaseChannel writes messages to the in-app inbox.
type DatabaseChannel struct {
	Store store.Store
	Now   func() time.Time
}

func (c *DatabaseChannel) Name() domain.Channel { return domain.ChannelDatabase }

func (c *DatabaseChannel) Deliver(ctx context.Context, msg Message) error {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	n := domain.Notification{
		ID:        uuid.New(),
		UserID:    msg.UserID,
		Title:     msg.Title,
		Body:      msg.Body,
		CreatedAt: now().UTC(),
	}
	if err := c.Store.Notifications().CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}
