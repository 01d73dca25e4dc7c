package inapp

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opInsert        = "notification.inapp.repository.insert"
	opGet           = "notification.inapp.repository.get"
	opList          = "notification.inapp.repository.list"
	opCountUnread   = "notification.inapp.repository.count_unread"
	opMarkRead      = "notification.inapp.repository.mark_read"
	opMarkAllRead   = "notification.inapp.repository.mark_all_read"
	opMarkDelivered = "notification.inapp.repository.mark_delivered"

	errUserIDRequired = "userId is required"

	notificationColumns = `id, recipient_id, kind, reference_kind, reference_id, title, body, payload,
		read_at, delivered_at, created_at`
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n       Notification
		payload []byte
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.ReferenceKind, &n.ReferenceID, &n.Title, &n.Body,
		&payload, &n.ReadAt, &n.DeliveredAt, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return Notification{}, fmt.Errorf("decode notification payload: %w", err)
		}
	}
	return n, nil
}

func (r *Repository) Insert(ctx context.Context, n Notification) (Notification, bool, error) {
	if n.RecipientID == uuid.Nil || n.ReferenceID == uuid.Nil {
		return Notification{}, false, apperr.Validation("recipientId and referenceId are required").WithOp(opInsert)
	}

	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Notification{}, false, fmt.Errorf("marshal payload: %w", err)
	}

	stored, err := scanNotification(r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, kind, reference_kind, reference_id, title, body, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT uq_notifications_idempotency DO NOTHING
		RETURNING `+notificationColumns,
		n.ID, n.RecipientID, n.Kind, n.ReferenceKind, n.ReferenceID, n.Title, n.Body, payloadBytes,
	))
	if err == nil {
		return stored, true, nil
	}
	if !db.IsNoRows(err) {
		return Notification{}, false, db.Unavailable(opInsert, err)
	}

	existing, err := scanNotification(r.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE kind = $1 AND recipient_id = $2 AND reference_kind = $3 AND reference_id = $4`,
		n.Kind, n.RecipientID, n.ReferenceKind, n.ReferenceID,
	))
	if err != nil {
		return Notification{}, false, db.Unavailable(opInsert, err)
	}
	return existing, false, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Notification, error) {
	n, err := scanNotification(r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Notification{}, ErrNotificationNotFound
		}
		return Notification{}, db.Unavailable(opGet, err)
	}
	return n, nil
}

func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	if userID == uuid.Nil {
		return nil, 0, apperr.Validation(errUserIDRequired).WithOp(opList)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, db.Unavailable(opList, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, db.Unavailable(opList, err)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, db.Unavailable(opList, err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Unavailable(opList, err)
	}
	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, apperr.Validation(errUserIDRequired).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, db.Unavailable(opCountUnread, err)
	}
	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return apperr.Validation("userId and notificationId are required").WithOp(opMarkRead)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, now())
		WHERE id = $1 AND recipient_id = $2`, id, userID)
	if err != nil {
		return db.Unavailable(opMarkRead, err)
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperr.Validation(errUserIDRequired).WithOp(opMarkAllRead)
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE recipient_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return db.Unavailable(opMarkAllRead, err)
	}
	return nil
}

func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET delivered_at = COALESCE(delivered_at, now()) WHERE id = $1`, id)
	if err != nil {
		return db.Unavailable(opMarkDelivered, err)
	}
	return nil
}
