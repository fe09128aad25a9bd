package entity

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
)

// CatalogService represents a catalog service an order is placed for.
type CatalogService struct {
	ID          uuid.UUID
	Name        string
	IsActive    bool
	FieldSchema []valueobject.FieldSchema
}
