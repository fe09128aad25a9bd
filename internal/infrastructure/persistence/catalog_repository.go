package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

type serviceRow struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	IsActive    bool      `db:"is_active"`
	FieldSchema []byte    `db:"field_schema"`
}

// CatalogRepository читает услуги из таблицы services.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindServiceByID(ctx context.Context, id uuid.UUID) (*entity.CatalogService, error) {
	var row serviceRow
	query := `SELECT id, name, is_active, field_schema FROM services WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, dbError(err, apperror.ErrServiceNotFound, "не удалось получить услугу")
	}

	svc := &entity.CatalogService{ID: row.ID, Name: row.Name, IsActive: row.IsActive}
	if err := unmarshalJSONB(row.FieldSchema, &svc.FieldSchema); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённая схема полей услуги")
	}
	return svc, nil
}
