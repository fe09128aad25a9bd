package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

const finalizedColumns = `id, order_id, owner_id, service_id, documents, order_identifier, selector_field,
	tracking_status, approved_by, approved_at, created_at`

var errFinalizedNotFound = apperror.New(apperror.ErrCodeNotFound, "финализированный заказ не найден")

type finalizedRow struct {
	ID              uuid.UUID `db:"id"`
	OrderID         uuid.UUID `db:"order_id"`
	OwnerID         uuid.UUID `db:"owner_id"`
	ServiceID       uuid.UUID `db:"service_id"`
	Documents       []byte    `db:"documents"`
	OrderIdentifier string    `db:"order_identifier"`
	SelectorField   string    `db:"selector_field"`
	TrackingStatus  string    `db:"tracking_status"`
	ApprovedBy      uuid.UUID `db:"approved_by"`
	ApprovedAt      time.Time `db:"approved_at"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r finalizedRow) toEntity() (*entity.FinalizedOrder, error) {
	f := &entity.FinalizedOrder{
		ID:              r.ID,
		OrderID:         r.OrderID,
		OwnerID:         r.OwnerID,
		ServiceID:       r.ServiceID,
		OrderIdentifier: r.OrderIdentifier,
		SelectorField:   r.SelectorField,
		TrackingStatus:  valueobject.TrackingStatus(r.TrackingStatus),
		ApprovedBy:      r.ApprovedBy,
		ApprovedAt:      r.ApprovedAt,
		CreatedAt:       r.CreatedAt,
	}
	if err := unmarshalJSONB(r.Documents, &f.Documents); err != nil {
		return nil, fmt.Errorf("documents финализированного заказа %s: %w", r.OrderID, err)
	}
	return f, nil
}

// FinalizedOrderRepository читает finalized_orders. Запись идёт только через Finalizer.
type FinalizedOrderRepository struct {
	db *sqlx.DB
}

func NewFinalizedOrderRepository(db *sqlx.DB) *FinalizedOrderRepository {
	return &FinalizedOrderRepository{db: db}
}

func (r *FinalizedOrderRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.FinalizedOrder, error) {
	var row finalizedRow
	query := `SELECT ` + finalizedColumns + ` FROM finalized_orders WHERE order_id = $1`
	if err := r.db.GetContext(ctx, &row, query, orderID); err != nil {
		return nil, dbError(err, errFinalizedNotFound, "не удалось получить финализированный заказ")
	}
	f, err := row.toEntity()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённые данные финализированного заказа")
	}
	return f, nil
}

func (r *FinalizedOrderRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.FinalizedOrder, error) {
	var rows []finalizedRow
	query := `SELECT ` + finalizedColumns + ` FROM finalized_orders WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, dbError(err, nil, "не удалось получить финализированные заказы")
	}
	return rowsToFinalized(rows)
}

func (r *FinalizedOrderRepository) List(ctx context.Context, limit, offset int) ([]*entity.FinalizedOrder, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM finalized_orders`); err != nil {
		return nil, 0, dbError(err, nil, "не удалось посчитать финализированные заказы")
	}

	var rows []finalizedRow
	query := `SELECT ` + finalizedColumns + ` FROM finalized_orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, dbError(err, nil, "не удалось получить финализированные заказы")
	}
	list, err := rowsToFinalized(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func rowsToFinalized(rows []finalizedRow) ([]*entity.FinalizedOrder, error) {
	out := make([]*entity.FinalizedOrder, 0, len(rows))
	for _, row := range rows {
		f, err := row.toEntity()
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённые данные финализированного заказа")
		}
		out = append(out, f)
	}
	return out, nil
}

func insertFinalized(ctx context.Context, q sqlx.ExecerContext, f *entity.FinalizedOrder) error {
	docs, err := marshalJSONB(f.Documents)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать документы")
	}

	query := `
		INSERT INTO finalized_orders (id, order_id, owner_id, service_id, documents, order_identifier,
			selector_field, tracking_status, approved_by, approved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = q.ExecContext(ctx, query,
		f.ID,
		f.OrderID,
		f.OwnerID,
		f.ServiceID,
		docs,
		f.OrderIdentifier,
		f.SelectorField,
		string(f.TrackingStatus),
		f.ApprovedBy,
		f.ApprovedAt,
		f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperror.ErrAlreadyFinalized
	}
	return dbError(err, nil, "не удалось создать финализированный заказ")
}
