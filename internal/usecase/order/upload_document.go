package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

type UploadDocumentInput struct {
	OrderID      uuid.UUID
	DocumentName string
	Filename     string
	MimeType     string
	Data         []byte
}

type UploadDocumentUseCase struct {
	orderRepo repository.OrderRepository
	storage   repository.ObjectStorage
	maxSize   int64
}

func NewUploadDocumentUseCase(orderRepo repository.OrderRepository, storage repository.ObjectStorage, maxSize int64) *UploadDocumentUseCase {
	if maxSize <= 0 {
		maxSize = valueobject.MaxChatFileSize
	}
	return &UploadDocumentUseCase{orderRepo: orderRepo, storage: storage, maxSize: maxSize}
}

func (uc *UploadDocumentUseCase) Execute(ctx context.Context, input UploadDocumentInput, actor valueobject.Actor) (*entity.Document, error) {
	if len(input.Data) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "file: файл пустой")
	}
	if int64(len(input.Data)) > uc.maxSize {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "file: размер превышает %d МБ", uc.maxSize/(1024*1024))
	}

	mimeType, err := valueobject.ResolveMimeType(valueobject.DetectMimeType(input.MimeType, input.Data), input.Filename)
	if err != nil {
		return nil, err
	}

	// Права проверяем до загрузки, чтобы не оставлять в хранилище чужие файлы.
	o, err := uc.orderRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeViewedBy(actor) {
		return nil, apperror.ErrNotOrderOwner
	}
	if o.IsFinalized() {
		return nil, apperror.New(apperror.ErrCodeValidation, "в финализированный заказ нельзя добавить документ")
	}

	stored, err := uc.storage.Put(ctx, fmt.Sprintf("orders/%s", o.ID), input.Data, input.Filename, mimeType)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.DocumentName)
	if name == "" {
		name = input.Filename
	}

	var added entity.Document
	_, err = mutateOrder(ctx, uc.orderRepo, input.OrderID, func(o *entity.Order) error {
		now := time.Now().UTC()
		added = entity.NewDocument(name, now)
		added.URL = stored.URL
		added.StorageKey = stored.Key
		added.MimeType = mimeType
		added.Size = int64(len(input.Data))
		o.AddDocument(added, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}
