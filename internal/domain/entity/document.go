package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document represents a document embedded in an order.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	DocumentName string         `json:"documentName"`
	URL          string         `json:"url,omitempty"`
	StorageKey   string         `json:"key,omitempty"`
	PeerHash     string         `json:"peerHash,omitempty"`
	PeerURL      string         `json:"peerUrl,omitempty"`
	MimeType     string         `json:"mimeType,omitempty"`
	Size         int64          `json:"size,omitempty"`
	OcrData      map[string]any `json:"ocrData"`
	OcrUpdatedAt *time.Time     `json:"ocrUpdatedAt,omitempty"`
	UploadedAt   time.Time      `json:"uploadedAt"`
}

func NewDocument(name string, now time.Time) Document {
	return Document{
		ID:           uuid.New(),
		DocumentName: name,
		OcrData:      map[string]any{},
		UploadedAt:   now,
	}
}

// MergeOcrData выполняет поверхностное слияние: ключи из data перезаписывают существующие.
func (d *Document) MergeOcrData(data map[string]any, now time.Time) {
	if d.OcrData == nil {
		d.OcrData = make(map[string]any, len(data))
	}
	for k, v := range data {
		d.OcrData[k] = v
	}
	d.OcrUpdatedAt = &now
}

// OcrUpdate represents an OCR data update for one document.
type OcrUpdate struct {
	DocumentID uuid.UUID
	OcrData    map[string]any
}
