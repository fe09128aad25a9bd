package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

const (
	collectionName = "chat_messages"

	// MessageTTL задаёт срок жизни сообщения. Удаление выполняет сам MongoDB по TTL индексу.
	MessageTTL = 30 * 24 * time.Hour
)

type messageDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	OrderID     string             `bson:"order_id"`
	SenderID    string             `bson:"sender_id"`
	SenderType  string             `bson:"sender_type"`
	MessageType string             `bson:"message_type"`
	Content     string             `bson:"content"`
	FileURL     string             `bson:"file_url,omitempty"`
	FileName    string             `bson:"file_name,omitempty"`
	FileSize    int64              `bson:"file_size,omitempty"`
	MimeType    string             `bson:"mime_type,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func newMessageDoc(m *entity.ChatMessage) messageDoc {
	return messageDoc{
		ID:          primitive.NewObjectID(),
		OrderID:     m.OrderID.String(),
		SenderID:    m.SenderID.String(),
		SenderType:  string(m.SenderType),
		MessageType: string(m.MessageType),
		Content:     m.Content,
		FileURL:     m.FileURL,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		MimeType:    m.MimeType,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func (d messageDoc) toEntity() *entity.ChatMessage {
	// Идентификаторы пишем только мы сами, поэтому ошибка разбора даёт uuid.Nil.
	orderID, _ := uuid.Parse(d.OrderID)
	senderID, _ := uuid.Parse(d.SenderID)
	return &entity.ChatMessage{
		ID:          d.ID.Hex(),
		OrderID:     orderID,
		SenderID:    senderID,
		SenderType:  entity.SenderType(d.SenderType),
		MessageType: valueobject.MessageType(d.MessageType),
		Content:     d.Content,
		FileURL:     d.FileURL,
		FileName:    d.FileName,
		FileSize:    d.FileSize,
		MimeType:    d.MimeType,
		CreatedAt:   d.CreatedAt,
	}
}

// ChatStore хранит сообщения чатов в MongoDB.
type ChatStore struct {
	col *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{col: db.Collection(collectionName)}
}

// EnsureIndexes создаёт TTL индекс на created_at и индекс для истории заказа.
func (s *ChatStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("chat_messages_ttl").SetExpireAfterSeconds(int32(MessageTTL / time.Second)),
		},
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("chat_messages_order_created"),
		},
	}
	if _, err := s.col.Indexes().CreateMany(ctx, models); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать индексы чата")
	}
	return nil
}

func (s *ChatStore) Create(ctx context.Context, msg *entity.ChatMessage) error {
	doc := newMessageDoc(msg)
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить сообщение")
	}
	msg.ID = doc.ID.Hex()
	return nil
}

func (s *ChatStore) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{"order_id": orderID.String()}, opts)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить историю чата")
	}
	return decodeMessages(ctx, cur)
}

func (s *ChatStore) List(ctx context.Context, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	total, err := s.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать сообщения")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить сообщения")
	}
	list, err := decodeMessages(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

type roomDoc struct {
	OrderID string     `bson:"_id"`
	Last    messageDoc `bson:"last"`
	Count   int64      `bson:"count"`
}

// activeRoomsPipeline группирует сообщения по заказу и оставляет последнее.
func activeRoomsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$order_id"},
			{Key: "last", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}}}},
	}
}

func (s *ChatStore) ActiveRooms(ctx context.Context) ([]*entity.ActiveRoom, error) {
	cur, err := s.col.Aggregate(ctx, activeRoomsPipeline())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить активные чаты")
	}
	defer cur.Close(ctx)

	var rooms []*entity.ActiveRoom
	for cur.Next(ctx) {
		var doc roomDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённые данные чата")
		}
		last := doc.Last.toEntity()
		rooms = append(rooms, &entity.ActiveRoom{
			OrderID:      last.OrderID,
			LastMessage:  last,
			MessageCount: doc.Count,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить активные чаты")
	}
	return rooms, nil
}

func (s *ChatStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.ErrMessageNotFound
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить сообщение")
	}
	if res.DeletedCount == 0 {
		return apperror.ErrMessageNotFound
	}
	return nil
}

func decodeMessages(ctx context.Context, cur *mongo.Cursor) ([]*entity.ChatMessage, error) {
	defer cur.Close(ctx)

	out := make([]*entity.ChatMessage, 0)
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "повреждённые данные чата")
		}
		out = append(out, doc.toEntity())
	}
	if err := cur.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "ошибка чтения сообщений")
	}
	return out, nil
}
