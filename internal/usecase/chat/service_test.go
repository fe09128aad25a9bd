package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/chat"
)

// orderStub is a read-only OrderRepository.
type orderStub struct {
	orders map[uuid.UUID]*entity.Order
}

func newOrderStub() *orderStub {
	return &orderStub{orders: make(map[uuid.UUID]*entity.Order)}
}

func (s *orderStub) add(ownerID uuid.UUID) *entity.Order {
	o := entity.NewOrder(ownerID, uuid.New(), nil, nil, time.Now().UTC())
	s.orders[o.ID] = o
	return o
}

func (s *orderStub) Create(ctx context.Context, o *entity.Order) error { return nil }
func (s *orderStub) Save(ctx context.Context, o *entity.Order) error   { return nil }
func (s *orderStub) Delete(ctx context.Context, id uuid.UUID) error    { return nil }

func (s *orderStub) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, apperror.ErrOrderNotFound
	}
	return o, nil
}

func (s *orderStub) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.Order, error) {
	return nil, nil
}

func (s *orderStub) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	return nil, 0, nil
}

func TestAuthorizeConnection(t *testing.T) {
	orders := newOrderStub()
	ownerID := uuid.New()
	o := orders.add(ownerID)
	disabled := orders.add(ownerID)
	disabled.Statuses.ChatStatus = valueobject.ToggleDisabled
	svc := chat.NewService(orders, nil, &memoryMessages{})

	ownerActor := valueobject.Actor{ID: ownerID, Role: valueobject.RoleUser}
	adminActor := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleSubAdmin}
	stranger := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleUser}

	tests := []struct {
		name     string
		orderID  uuid.UUID
		actor    valueobject.Actor
		userType string
		check    func(error) bool
	}{
		{"owner", o.ID, ownerActor, "user", nil},
		{"admin", o.ID, adminActor, "admin", nil},
		{"admin joins disabled chat", disabled.ID, adminActor, "admin", nil},
		{"stranger", o.ID, stranger, "user", apperror.IsForbidden},
		{"chat disabled for user", disabled.ID, ownerActor, "user", apperror.IsForbidden},
		{"user claims admin type", o.ID, ownerActor, "admin", apperror.IsForbidden},
		{"admin claims user type", o.ID, adminActor, "user", apperror.IsForbidden},
		{"unknown type", o.ID, ownerActor, "guest", apperror.IsValidation},
		{"unknown order", uuid.New(), ownerActor, "user", apperror.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := svc.AuthorizeConnection(context.Background(), tt.orderID, tt.actor, tt.userType)
			if tt.check == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.orderID, sender.OrderID)
				assert.Equal(t, tt.actor.ID, sender.UserID)
				assert.Equal(t, entity.SenderType(tt.userType), sender.Type)
				return
			}
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
		})
	}
}

func TestAdminViewsRequireAdmin(t *testing.T) {
	svc := chat.NewService(newOrderStub(), nil, &memoryMessages{})
	user := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleUser}

	_, _, err := svc.AllMessages(context.Background(), user, 10, 0)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.ActiveRooms(context.Background(), user)
	assert.True(t, apperror.IsForbidden(err))
}

func TestAllMessagesNewestFirst(t *testing.T) {
	messages := &memoryMessages{}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, messages.Create(context.Background(), &entity.ChatMessage{
			OrderID:   uuid.New(),
			Content:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	svc := chat.NewService(newOrderStub(), nil, messages)

	list, total, err := svc.AllMessages(context.Background(), valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}, 0, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{"c", "b", "a"}, contents(list))
}

type finalizedStub struct {
	records map[uuid.UUID]*entity.FinalizedOrder
}

func (s *finalizedStub) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.FinalizedOrder, error) {
	f, ok := s.records[orderID]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeNotFound, "финализированный заказ не найден")
	}
	return f, nil
}

func (s *finalizedStub) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.FinalizedOrder, error) {
	return nil, nil
}

func (s *finalizedStub) List(ctx context.Context, limit, offset int) ([]*entity.FinalizedOrder, int, error) {
	return nil, 0, nil
}

// approve повторяет путь администратора: итоговая запись создана, заказ удалён.
func approve(orders *orderStub, finalized *finalizedStub, o *entity.Order) {
	f := entity.NewFinalizedOrder(o, "", "", valueobject.TrackingApproved, uuid.New(), time.Now().UTC())
	finalized.records[o.ID] = f
	delete(orders.orders, o.ID)
}

func TestChatOfApprovedOrder(t *testing.T) {
	orders := newOrderStub()
	finalized := &finalizedStub{records: make(map[uuid.UUID]*entity.FinalizedOrder)}
	messages := &memoryMessages{}
	ownerID := uuid.New()
	o := orders.add(ownerID)
	require.NoError(t, messages.Create(context.Background(), &entity.ChatMessage{OrderID: o.ID, Content: "до одобрения", CreatedAt: time.Now().UTC()}))
	approve(orders, finalized, o)

	svc := chat.NewService(orders, finalized, messages)
	ownerActor := valueobject.Actor{ID: ownerID, Role: valueobject.RoleUser}
	adminActor := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}
	stranger := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleUser}

	t.Run("history for admin and owner", func(t *testing.T) {
		for _, actor := range []valueobject.Actor{adminActor, ownerActor} {
			history, err := svc.History(context.Background(), o.ID, actor)
			require.NoError(t, err)
			assert.Equal(t, []string{"до одобрения"}, contents(history))
		}
	})

	t.Run("history for stranger", func(t *testing.T) {
		_, err := svc.History(context.Background(), o.ID, stranger)
		assert.ErrorIs(t, err, apperror.ErrNotOrderOwner)
	})

	t.Run("admin still connects", func(t *testing.T) {
		sender, err := svc.AuthorizeConnection(context.Background(), o.ID, adminActor, "admin")
		require.NoError(t, err)
		assert.Equal(t, o.ID, sender.OrderID)
	})

	t.Run("owner cannot write", func(t *testing.T) {
		_, err := svc.AuthorizeConnection(context.Background(), o.ID, ownerActor, "user")
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("unknown order stays not found", func(t *testing.T) {
		_, err := svc.History(context.Background(), uuid.New(), adminActor)
		assert.ErrorIs(t, err, apperror.ErrOrderNotFound)
	})
}
