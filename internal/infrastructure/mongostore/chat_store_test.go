package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

func TestMessageDoc_KeepsFileFields(t *testing.T) {
	orderID, senderID := uuid.New(), uuid.New()
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	msg := entity.NewFileMessage(orderID, senderID, entity.SenderTypeAdmin, "", entity.Attachment{
		URL:      "/media/chat/a.pdf",
		Name:     "a.pdf",
		Size:     42,
		MimeType: "application/pdf",
	}, now)

	got := newMessageDoc(msg).toEntity()

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, orderID, got.OrderID)
	assert.Equal(t, senderID, got.SenderID)
	assert.Equal(t, valueobject.MessageTypePDF, got.MessageType)
	assert.Equal(t, "a.pdf", got.Content)
	assert.Equal(t, int64(42), got.FileSize)
	assert.Equal(t, now, got.CreatedAt)
}

func TestActiveRoomsPipeline_GroupsByOrder(t *testing.T) {
	p := activeRoomsPipeline()
	require.Len(t, p, 3)
	assert.Equal(t, "$sort", p[0][0].Key)
	assert.Equal(t, "$group", p[1][0].Key)
	group := p[1][0].Value.(bson.D)
	assert.Equal(t, "$order_id", group[0].Value)
}

func TestMessageTTL(t *testing.T) {
	assert.Equal(t, int32(2592000), int32(MessageTTL/time.Second))
}

func TestChatStore_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns id", func(mt *mtest.T) {
		store := &ChatStore{col: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		msg, err := entity.NewTextMessage(uuid.New(), uuid.New(), entity.SenderTypeUser, "привет", time.Now())
		require.NoError(mt, err)
		require.NoError(mt, store.Create(context.Background(), msg))

		_, err = primitive.ObjectIDFromHex(msg.ID)
		assert.NoError(mt, err)
	})

	mt.Run("history decodes documents", func(mt *mtest.T) {
		store := &ChatStore{col: mt.Coll}
		orderID := uuid.New()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		created := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "order_id", Value: orderID.String()},
					{Key: "sender_id", Value: uuid.NewString()},
					{Key: "sender_type", Value: "user"},
					{Key: "message_type", Value: "text"},
					{Key: "content", Value: "первое"},
					{Key: "created_at", Value: created},
				},
				bson.D{
					{Key: "_id", Value: primitive.NewObjectID()},
					{Key: "order_id", Value: orderID.String()},
					{Key: "sender_id", Value: uuid.NewString()},
					{Key: "sender_type", Value: "admin"},
					{Key: "message_type", Value: "text"},
					{Key: "content", Value: "второе"},
					{Key: "created_at", Value: created.Add(time.Minute)},
				},
			),
		)

		list, err := store.FindByOrderID(context.Background(), orderID)

		require.NoError(mt, err)
		require.Len(mt, list, 2)
		assert.Equal(mt, "первое", list[0].Content)
		assert.Equal(mt, entity.SenderTypeAdmin, list[1].SenderType)
		assert.Equal(mt, orderID, list[1].OrderID)
	})

	mt.Run("delete missing message", func(mt *mtest.T) {
		store := &ChatStore{col: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})

		err := store.Delete(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, apperror.ErrMessageNotFound)
	})

	mt.Run("delete existing message", func(mt *mtest.T) {
		store := &ChatStore{col: mt.Coll}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}})

		assert.NoError(mt, store.Delete(context.Background(), primitive.NewObjectID().Hex()))
	})

	mt.Run("delete malformed id", func(mt *mtest.T) {
		store := &ChatStore{col: mt.Coll}
		err := store.Delete(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, apperror.ErrMessageNotFound)
	})
}
