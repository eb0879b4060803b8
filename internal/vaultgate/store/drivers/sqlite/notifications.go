package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/google/uuid"
)

type notificationsRepo struct {
	q querier
}

func (r *notificationsRepo) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, body, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.UserID, n.Title, n.Body, mapOptionalTime(n.ReadAt), toMillis(n.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *notificationsRepo) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, title, body, read_at, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n         domain.Notification
			id        string
			readAt    sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&id, &n.UserID, &n.Title, &n.Body, &readAt, &createdAt); err != nil {
			return nil, err
		}
		if n.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		n.ReadAt = mapNullTimePtr(readAt)
		n.CreatedAt = fromMillis(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationsRepo) MarkNotificationRead(ctx context.Context, userID string, id uuid.UUID, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		toMillis(at), id.String(), userID))
}
