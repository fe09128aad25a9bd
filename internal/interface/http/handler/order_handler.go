package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/dto"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/order"
)

// OrderUseCases groups the use cases served by OrderHandler.
type OrderUseCases struct {
	Create          *order.CreateOrderUseCase
	Get             *order.GetOrderUseCase
	ListMine        *order.ListMyOrdersUseCase
	List            *order.ListOrdersUseCase
	ListFinalized   *order.ListFinalizedUseCase
	StartProcessing *order.StartProcessingUseCase
	Complete        *order.CompleteOrderUseCase
	PatchStatuses   *order.PatchStatusesUseCase
	History         *order.GetStatusHistoryUseCase
	UpdateOcr       *order.UpdateOcrDataUseCase
	Approve         *order.ApproveOrderUseCase
	Finalize        *order.FinalizeOrderUseCase
	Delete          *order.DeleteOrderUseCase
	UploadDocument  *order.UploadDocumentUseCase
}

type OrderHandler struct {
	uc            OrderUseCases
	maxUploadSize int64
}

func NewOrderHandler(uc OrderUseCases, maxUploadSize int64) *OrderHandler {
	return &OrderHandler{uc: uc, maxUploadSize: maxUploadSize}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	docs := make([]order.DocumentInput, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, order.DocumentInput{
			Name:     d.DocumentName,
			URL:      d.URL,
			Key:      d.Key,
			PeerHash: d.PeerHash,
			PeerURL:  d.PeerURL,
		})
	}

	created, err := h.uc.Create.Execute(c.Request.Context(), order.CreateOrderInput{
		OwnerID:          actor.ID,
		ServiceID:        uuid.MustParse(req.ServiceID),
		Documents:        docs,
		AdditionalFields: req.AdditionalFields,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToOrderResponse(created))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	o, err := h.uc.Get.Execute(c.Request.Context(), orderID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

func (h *OrderHandler) GetStatusHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	history, err := h.uc.History.Execute(c.Request.Context(), orderID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, history)
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	orders, err := h.uc.ListMine.Execute(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderListResponse(orders))
}

// ListOrders handles GET /api/admin/orders?status=&limit=&offset=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit, offset := pageParams(c, 20, 100)

	orders, total, err := h.uc.List.Execute(c.Request.Context(), repository.OrderFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToOrderListResponse(orders), total, limit, offset)
}

func (h *OrderHandler) StartProcessing(c *gin.Context) {
	h.transition(c, h.uc.StartProcessing.Execute)
}

func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	h.transition(c, h.uc.Complete.Execute)
}

func (h *OrderHandler) PatchStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req dto.PatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	o, err := h.uc.PatchStatuses.Execute(c.Request.Context(), orderID, req.ToPatch(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

func (h *OrderHandler) UpdateOcrData(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateOcrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return
	}

	o, err := h.uc.UpdateOcr.Execute(c.Request.Context(), orderID, req.ToUpdates(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

// ApproveOrder финализирует заказ от имени администратора.
func (h *OrderHandler) ApproveOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	input, ok := bindFinalize(c)
	if !ok {
		return
	}

	finalized, err := h.uc.Approve.Execute(c.Request.Context(), input, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToFinalizedResponse(finalized))
}

// FinalizeOrder финализирует заказ от имени владельца.
func (h *OrderHandler) FinalizeOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	input, ok := bindFinalize(c)
	if !ok {
		return
	}

	finalized, err := h.uc.Finalize.Execute(c.Request.Context(), input, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToFinalizedResponse(finalized))
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.uc.Delete.Execute(c.Request.Context(), orderID, actor); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *OrderHandler) ListMyFinalized(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	list, err := h.uc.ListFinalized.Mine(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToFinalizedListResponse(list))
}

func (h *OrderHandler) ListFinalized(c *gin.Context) {
	limit, offset := pageParams(c, 20, 100)

	list, total, err := h.uc.ListFinalized.All(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToFinalizedListResponse(list), total, limit, offset)
}

// UploadDocument принимает multipart поле file и необязательное поле documentName.
func (h *OrderHandler) UploadDocument(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	file, err := readUpload(c, "file", h.maxUploadSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, err := h.uc.UploadDocument.Execute(c.Request.Context(), order.UploadDocumentInput{
		OrderID:      orderID,
		DocumentName: c.PostForm("documentName"),
		Filename:     file.Name,
		MimeType:     file.MimeType,
		Data:         file.Data,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

type orderTransition func(ctx context.Context, id uuid.UUID, actor valueobject.Actor) (*entity.Order, error)

func (h *OrderHandler) transition(c *gin.Context, run orderTransition) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	o, err := run(c.Request.Context(), orderID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

func bindFinalize(c *gin.Context) (order.FinalizeInput, bool) {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return order.FinalizeInput{}, false
	}

	var req dto.FinalizeRequest
	// Тело необязательно: без него используются значения по умолчанию.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "некорректные данные запроса")
			return order.FinalizeInput{}, false
		}
	}

	return order.FinalizeInput{
		OrderID:         orderID,
		OrderIdentifier: req.OrderIdentifier,
		SelectorField:   req.SelectorField,
		TrackingStatus:  req.TrackingStatus,
	}, true
}
