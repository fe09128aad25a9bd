package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

const orderColumns = `id, owner_id, service_id, documents, additional_fields, status, tracking_status,
	chat_status, approve_status, status_history, version, created_at, updated_at`

// orderRow represents a review_orders row. JSONB columns are scanned as []byte.
type orderRow struct {
	ID               uuid.UUID `db:"id"`
	OwnerID          uuid.UUID `db:"owner_id"`
	ServiceID        uuid.UUID `db:"service_id"`
	Documents        []byte    `db:"documents"`
	AdditionalFields []byte    `db:"additional_fields"`
	Status           string    `db:"status"`
	TrackingStatus   string    `db:"tracking_status"`
	ChatStatus       string    `db:"chat_status"`
	ApproveStatus    string    `db:"approve_status"`
	StatusHistory    []byte    `db:"status_history"`
	Version          int       `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r orderRow) toEntity() (*entity.Order, error) {
	o := entity.Order{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		ServiceID: r.ServiceID,
		Statuses: valueobject.StatusSnapshot{
			Status:         valueobject.OrderStatus(r.Status),
			TrackingStatus: valueobject.TrackingStatus(r.TrackingStatus),
			ChatStatus:     valueobject.Toggle(r.ChatStatus),
			ApproveStatus:  valueobject.Toggle(r.ApproveStatus),
		},
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if err := unmarshalJSONB(r.Documents, &o.Documents); err != nil {
		return nil, fmt.Errorf("documents заказа %s: %w", r.ID, err)
	}
	if err := unmarshalJSONB(r.AdditionalFields, &o.AdditionalFields); err != nil {
		return nil, fmt.Errorf("additional_fields заказа %s: %w", r.ID, err)
	}
	if err := unmarshalJSONB(r.StatusHistory, &o.StatusHistory); err != nil {
		return nil, fmt.Errorf("status_history заказа %s: %w", r.ID, err)
	}
	return entity.RestoreOrder(o), nil
}

func unmarshalJSONB(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// marshalJSONB сериализует nil срез как пустой массив, а не null.
func marshalJSONB[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// OrderRepository хранит заказы на рассмотрении в PostgreSQL.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *entity.Order) error {
	docs, err := marshalJSONB(o.Documents)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать документы")
	}
	fields, err := marshalJSONB(o.AdditionalFields)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать дополнительные поля")
	}
	history, err := marshalJSONB(o.StatusHistory)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать журнал статусов")
	}

	query := `
		INSERT INTO review_orders (id, owner_id, service_id, documents, additional_fields, status,
			tracking_status, chat_status, approve_status, status_history, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		o.ID,
		o.OwnerID,
		o.ServiceID,
		docs,
		fields,
		string(o.Statuses.Status),
		string(o.Statuses.TrackingStatus),
		string(o.Statuses.ChatStatus),
		string(o.Statuses.ApproveStatus),
		history,
		o.Version+1,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return dbError(err, nil, "не удалось создать заказ")
	}
	o.MarkPersisted()
	return nil
}

func (r *OrderRepository) Save(ctx context.Context, o *entity.Order) error {
	return saveOrder(ctx, r.db, o)
}

func (r *OrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteOrder(ctx, r.db, id)
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return findOrder(ctx, r.db, `SELECT `+orderColumns+` FROM review_orders WHERE id = $1`, id)
}

func (r *OrderRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.Order, error) {
	var rows []orderRow
	query := `SELECT ` + orderColumns + ` FROM review_orders WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, dbError(err, nil, "не удалось получить заказы пользователя")
	}
	return rowsToOrders(rows)
}

func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	where, args := orderFilterClause(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM review_orders`+where, args...); err != nil {
		return nil, 0, dbError(err, nil, "не удалось посчитать заказы")
	}

	query := fmt.Sprintf(`SELECT %s FROM review_orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, dbError(err, nil, "не удалось получить список заказов")
	}
	orders, err := rowsToOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func orderFilterClause(filter repository.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func rowsToOrders(rows []orderRow) ([]*entity.Order, error) {
	orders := make([]*entity.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toEntity()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённые данные заказа")
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func findOrder(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*entity.Order, error) {
	var row orderRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return nil, dbError(err, apperror.ErrOrderNotFound, "не удалось получить заказ")
	}
	o, err := row.toEntity()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённые данные заказа")
	}
	return o, nil
}

// saveOrder пишет статусы и документы, дописывает в status_history только новые записи
// и сверяет версию. Используется и вне транзакции, и внутри неё.
func saveOrder(ctx context.Context, q sqlx.ExtContext, o *entity.Order) error {
	docs, err := marshalJSONB(o.Documents)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать документы")
	}
	pending, err := marshalJSONB(o.PendingHistory())
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать журнал статусов")
	}

	query := `
		UPDATE review_orders
		SET status = $2,
		    tracking_status = $3,
		    chat_status = $4,
		    approve_status = $5,
		    documents = $6,
		    status_history = status_history || $7::jsonb,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $1 AND version = $9
	`
	res, err := q.ExecContext(ctx, query,
		o.ID,
		string(o.Statuses.Status),
		string(o.Statuses.TrackingStatus),
		string(o.Statuses.ChatStatus),
		string(o.Statuses.ApproveStatus),
		docs,
		pending,
		o.UpdatedAt,
		o.Version,
	)
	if err != nil {
		return dbError(err, nil, "не удалось сохранить заказ")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return dbError(err, nil, "не удалось сохранить заказ")
	}
	if affected == 0 {
		// Строки нет совсем или версия ушла вперёд.
		var exists bool
		if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM review_orders WHERE id = $1)`, o.ID); err != nil {
			return dbError(err, nil, "не удалось проверить заказ")
		}
		if !exists {
			return apperror.ErrOrderNotFound
		}
		return apperror.ErrConcurrentUpdate
	}

	o.MarkPersisted()
	return nil
}

func deleteOrder(ctx context.Context, q sqlx.ExecerContext, id uuid.UUID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM review_orders WHERE id = $1`, id)
	if err != nil {
		return dbError(err, nil, "не удалось удалить заказ")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return dbError(err, nil, "не удалось удалить заказ")
	}
	if affected == 0 {
		return apperror.ErrOrderNotFound
	}
	return nil
}
