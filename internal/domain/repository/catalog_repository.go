package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
)

// CatalogRepository defines read-only access to the service catalog.
type CatalogRepository interface {
	FindServiceByID(ctx context.Context, id uuid.UUID) (*entity.CatalogService, error)
}
