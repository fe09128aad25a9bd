package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// Finalizer выполняет финализацию заказа в одной транзакции PostgreSQL.
type Finalizer struct {
	db *sqlx.DB
}

func NewFinalizer(db *sqlx.DB) *Finalizer {
	return &Finalizer{db: db}
}

func (f *Finalizer) WithinTx(ctx context.Context, fn func(tx repository.FinalizationTx) error) error {
	return withTransaction(ctx, f.db, func(tx *sqlx.Tx) error {
		return fn(&finalizationTx{tx: tx})
	})
}

// withTransaction откатывает транзакцию при ошибке fn и при панике.
func withTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начать транзакцию")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return apperror.Wrap(fmt.Errorf("%w, rollback: %v", err, rbErr), apperror.ErrCodeDatabaseError, "не удалось откатить транзакцию")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зафиксировать транзакцию")
	}
	return nil
}

type finalizationTx struct {
	tx *sqlx.Tx
}

func (t *finalizationTx) LockOrder(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return findOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM review_orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *finalizationTx) InsertFinalized(ctx context.Context, f *entity.FinalizedOrder) error {
	return insertFinalized(ctx, t.tx, f)
}

func (t *finalizationTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return deleteOrder(ctx, t.tx, id)
}

func (t *finalizationTx) SaveOrder(ctx context.Context, o *entity.Order) error {
	return saveOrder(ctx, t.tx, o)
}
