package dto

import (
	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/chat"
)

// InboundFrame represents an incoming WebSocket frame.
type InboundFrame struct {
	Type    string            `json:"type"`
	Content string            `json:"content"`
	File    *InboundFileFrame `json:"file,omitempty"`
}

type InboundFileFrame struct {
	Data     string `json:"data"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

func (f InboundFrame) ToMessage() chat.InboundMessage {
	in := chat.InboundMessage{Content: f.Content}
	if f.File != nil {
		in.File = &chat.InboundFile{
			Data:     f.File.Data,
			Name:     f.File.Name,
			Size:     f.File.Size,
			MimeType: f.File.MimeType,
		}
	}
	return in
}

// ConnectionFrame отправляется соединению сразу после регистрации.
type ConnectionFrame struct {
	OrderID  string `json:"orderId"`
	UserType string `json:"userType"`
	RoomSize int    `json:"roomSize"`
}

func ChatMessages(list []*entity.ChatMessage) []*entity.ChatMessage {
	if list == nil {
		return []*entity.ChatMessage{}
	}
	return list
}

func ActiveRooms(list []*entity.ActiveRoom) []*entity.ActiveRoom {
	if list == nil {
		return []*entity.ActiveRoom{}
	}
	return list
}
