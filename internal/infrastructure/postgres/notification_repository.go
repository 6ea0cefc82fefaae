package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sfutchko/giddyapp-sub002/internal/domain/notification"
)

// NotificationRepository appends notification rows for the messaging service.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *NotificationRepository) Insert(ctx context.Context, ns ...*notification.Notification) error {
	for _, n := range ns {
		_, err := r.db(ctx).Exec(ctx,
			`INSERT INTO notifications (id, user_id, type, title, message, link, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.Link, n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert notification for %s: %w", n.UserID, err)
		}
	}
	return nil
}
