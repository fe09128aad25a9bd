package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// Service отвечает за чтение чатов и политику подключения.
type Service struct {
	orders    repository.OrderRepository
	finalized repository.FinalizedOrderRepository
	messages  repository.ChatMessageRepository
}

// NewService создаёт сервис. finalized может быть nil, тогда чат одобренного заказа недоступен.
func NewService(orders repository.OrderRepository, finalized repository.FinalizedOrderRepository, messages repository.ChatMessageRepository) *Service {
	return &Service{orders: orders, finalized: finalized, messages: messages}
}

// chatTarget описывает заказ, к чату которого обращаются.
type chatTarget struct {
	orderID     uuid.UUID
	ownerID     uuid.UUID
	chatEnabled bool
}

func (t chatTarget) canBeViewedBy(actor valueobject.Actor) bool {
	return actor.IsAdmin() || t.ownerID == actor.ID
}

// findTarget ищет заказ на рассмотрении. Одобренный администратором заказ удалён из
// review_orders, но его переписка живёт в хранилище сообщений, поэтому доступ
// проверяется по итоговой записи. Пользователю такой чат доступен только для чтения.
func (s *Service) findTarget(ctx context.Context, orderID uuid.UUID) (chatTarget, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err == nil {
		return chatTarget{orderID: o.ID, ownerID: o.OwnerID, chatEnabled: o.Statuses.ChatStatus.Enabled()}, nil
	}
	if !apperror.IsNotFound(err) || s.finalized == nil {
		return chatTarget{}, err
	}

	f, ferr := s.finalized.FindByOrderID(ctx, orderID)
	if ferr != nil {
		if apperror.IsNotFound(ferr) {
			return chatTarget{}, err
		}
		return chatTarget{}, ferr
	}
	return chatTarget{orderID: f.OrderID, ownerID: f.OwnerID}, nil
}

// AuthorizeConnection проверяет, может ли actor подключиться к чату заказа как userType.
//   - userType должен соответствовать роли из токена;
//   - пользователь подключается только к своему заказу и только при включённом чате;
//   - администратор подключается к чату любого заказа, в том числе одобренного.
func (s *Service) AuthorizeConnection(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor, userType string) (*Sender, error) {
	senderType, err := entity.NewSenderType(userType)
	if err != nil {
		return nil, err
	}
	if (senderType == entity.SenderTypeAdmin) != actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "userType не соответствует роли пользователя")
	}

	target, err := s.findTarget(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if senderType == entity.SenderTypeUser {
		if target.ownerID != actor.ID {
			return nil, apperror.ErrNotOrderOwner
		}
		if !target.chatEnabled {
			return nil, apperror.New(apperror.ErrCodeForbidden, "чат по заказу отключён")
		}
	}

	return &Sender{
		OrderID: target.orderID,
		UserID:  actor.ID,
		Type:    senderType,
		Role:    actor.Role,
	}, nil
}

// History возвращает переписку по заказу в порядке отправки.
func (s *Service) History(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor) ([]*entity.ChatMessage, error) {
	target, err := s.findTarget(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !target.canBeViewedBy(actor) {
		return nil, apperror.ErrNotOrderOwner
	}
	return s.messages.FindByOrderID(ctx, orderID)
}

// AllMessages возвращает все сообщения для администратора, новые первыми.
func (s *Service) AllMessages(ctx context.Context, actor valueobject.Actor, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperror.ErrForbidden
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.messages.List(ctx, limit, offset)
}

// ActiveRooms возвращает последнее сообщение каждого чата, новые первыми.
func (s *Service) ActiveRooms(ctx context.Context, actor valueobject.Actor) ([]*entity.ActiveRoom, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return s.messages.ActiveRooms(ctx)
}

func (s *Service) DeleteMessage(ctx context.Context, messageID string, actor valueobject.Actor) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"message_id": messageID,
		"admin_id":   actor.ID,
	}).Info("chat: сообщение удалено")
	return nil
}
