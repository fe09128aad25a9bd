package order_test

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// memoryStore хранит копии, чтобы изменения объекта в тесте не попадали в "базу" без Save.
type memoryStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]entity.Order
	finalized map[uuid.UUID]entity.FinalizedOrder

	// saveConflicts: сколько ближайших Save завершатся конфликтом версий.
	saveConflicts int
	// failDelete: ошибка для DeleteOrder внутри транзакции.
	failDelete error
	saves      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:    make(map[uuid.UUID]entity.Order),
		finalized: make(map[uuid.UUID]entity.FinalizedOrder),
	}
}

func copyOrder(o *entity.Order) entity.Order {
	c := *o
	c.Documents = make([]entity.Document, len(o.Documents))
	for i, d := range o.Documents {
		c.Documents[i] = d
		c.Documents[i].OcrData = make(map[string]any, len(d.OcrData))
		for k, v := range d.OcrData {
			c.Documents[i].OcrData[k] = v
		}
	}
	c.AdditionalFields = append(c.AdditionalFields[:0:0], o.AdditionalFields...)
	c.StatusHistory = append(c.StatusHistory[:0:0], o.StatusHistory...)
	return c
}

func (s *memoryStore) Create(ctx context.Context, o *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.MarkPersisted()
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *memoryStore) Save(ctx context.Context, o *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(o)
}

func (s *memoryStore) saveLocked(o *entity.Order) error {
	stored, ok := s.orders[o.ID]
	if !ok {
		return apperror.ErrOrderNotFound
	}
	if s.saveConflicts > 0 {
		s.saveConflicts--
		return apperror.ErrConcurrentUpdate
	}
	if stored.Version != o.Version {
		return apperror.ErrConcurrentUpdate
	}
	o.MarkPersisted()
	s.orders[o.ID] = copyOrder(o)
	s.saves++
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return apperror.ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *memoryStore) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(id)
}

func (s *memoryStore) findLocked(id uuid.UUID) (*entity.Order, error) {
	stored, ok := s.orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	return entity.RestoreOrder(copyOrder(&stored)), nil
}

func (s *memoryStore) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*entity.Order
	for _, o := range s.orders {
		if o.OwnerID == ownerID {
			result = append(result, entity.RestoreOrder(copyOrder(&o)))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *memoryStore) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*entity.Order
	for _, o := range s.orders {
		if filter.Status != "" && string(o.Statuses.Status) != filter.Status {
			continue
		}
		result = append(result, entity.RestoreOrder(copyOrder(&o)))
	}
	return result, len(result), nil
}

func (s *memoryStore) finalizedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finalized)
}

func (s *memoryStore) hasOrder(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[id]
	return ok
}

// WithinTx откатывает обе коллекции, если fn вернула ошибку.
func (s *memoryStore) WithinTx(ctx context.Context, fn func(tx repository.FinalizationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordersBackup := make(map[uuid.UUID]entity.Order, len(s.orders))
	for k, v := range s.orders {
		ordersBackup[k] = v
	}
	finalizedBackup := make(map[uuid.UUID]entity.FinalizedOrder, len(s.finalized))
	for k, v := range s.finalized {
		finalizedBackup[k] = v
	}

	if err := fn(memoryTx{s: s}); err != nil {
		s.orders = ordersBackup
		s.finalized = finalizedBackup
		return err
	}
	return nil
}

type memoryTx struct {
	s *memoryStore
}

func (tx memoryTx) LockOrder(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	return tx.s.findLocked(id)
}

func (tx memoryTx) InsertFinalized(ctx context.Context, f *entity.FinalizedOrder) error {
	if _, ok := tx.s.finalized[f.OrderID]; ok {
		return apperror.ErrAlreadyFinalized
	}
	tx.s.finalized[f.OrderID] = *f
	return nil
}

func (tx memoryTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if tx.s.failDelete != nil {
		return tx.s.failDelete
	}
	if _, ok := tx.s.orders[id]; !ok {
		return apperror.ErrOrderNotFound
	}
	delete(tx.s.orders, id)
	return nil
}

func (tx memoryTx) SaveOrder(ctx context.Context, o *entity.Order) error {
	return tx.s.saveLocked(o)
}

type memoryFinalizedRepo struct {
	s *memoryStore
}

func (r memoryFinalizedRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.FinalizedOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.finalized[orderID]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	return &f, nil
}

func (r memoryFinalizedRepo) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.FinalizedOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*entity.FinalizedOrder
	for _, f := range r.s.finalized {
		if f.OwnerID == ownerID {
			f := f
			result = append(result, &f)
		}
	}
	return result, nil
}

func (r memoryFinalizedRepo) List(ctx context.Context, limit, offset int) ([]*entity.FinalizedOrder, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*entity.FinalizedOrder
	for _, f := range r.s.finalized {
		f := f
		result = append(result, &f)
	}
	return result, len(result), nil
}

type staticCatalog struct {
	services map[uuid.UUID]*entity.CatalogService
}

func (c staticCatalog) FindServiceByID(ctx context.Context, id uuid.UUID) (*entity.CatalogService, error) {
	s, ok := c.services[id]
	if !ok {
		return nil, apperror.ErrServiceNotFound
	}
	return s, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event entity.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingStorage struct {
	calls int
	err   error
}

func (s *countingStorage) Put(ctx context.Context, prefix string, data []byte, filename, mimeType string) (repository.StoredObject, error) {
	s.calls++
	if s.err != nil {
		return repository.StoredObject{}, s.err
	}
	key := prefix + "/" + filename
	return repository.StoredObject{URL: "/media/" + key, Key: key}, nil
}
