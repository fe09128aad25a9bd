package valueobject

import (
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// MaxChatFileSize задаёт предельный размер файла в чате.
const MaxChatFileSize int64 = 10 * 1024 * 1024

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeFile        MessageType = "file"
	MessageTypePDF         MessageType = "pdf"
	MessageTypeDocument    MessageType = "document"
	MessageTypeSpreadsheet MessageType = "spreadsheet"
)

const (
	mimePDF  = "application/pdf"
	mimeDoc  = "application/msword"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXls  = "application/vnd.ms-excel"
	mimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePpt  = "application/vnd.ms-powerpoint"
	mimePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// Обобщённые бинарные типы, для которых реальный тип определяется по расширению.
var genericBinaryTypes = map[string]struct{}{
	"application/octet-stream": {},
	"binary/octet-stream":      {},
}

var allowedMimeTypes = map[string]struct{}{
	"image/jpeg":                   {},
	"image/jpg":                    {},
	"image/png":                    {},
	"image/gif":                    {},
	"image/webp":                   {},
	mimePDF:                        {},
	mimeDoc:                        {},
	mimeDocx:                       {},
	mimeXls:                        {},
	mimeXlsx:                       {},
	mimePpt:                        {},
	mimePptx:                       {},
	"application/zip":              {},
	"application/x-zip-compressed": {},
	"text/plain":                   {},
	"text/csv":                     {},
	"application/octet-stream":     {},
	"binary/octet-stream":          {},
}

var extensionMimeTypes = map[string]string{
	".pdf":  mimePDF,
	".doc":  mimeDoc,
	".docx": mimeDocx,
	".xls":  mimeXls,
	".xlsx": mimeXlsx,
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IsGenericBinary сообщает, что тип не несёт информации о содержимом.
func IsGenericBinary(mimeType string) bool {
	_, ok := genericBinaryTypes[normalizeMime(mimeType)]
	return ok
}

// ResolveMimeType проверяет заявленный тип файла по списку разрешённых.
// Для обобщённого бинарного типа конкретный тип берётся из расширения имени файла.
func ResolveMimeType(declared, filename string) (string, error) {
	mimeType := normalizeMime(declared)

	if IsGenericBinary(mimeType) {
		ext := strings.ToLower(filepath.Ext(filename))
		resolved, ok := extensionMimeTypes[ext]
		if !ok {
			return "", apperror.Newf(apperror.ErrCodeValidation, "тип файла %q не поддерживается", declared)
		}
		mimeType = resolved
	}

	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return "", apperror.Newf(apperror.ErrCodeValidation, "тип файла %q не поддерживается", declared)
	}
	return mimeType, nil
}

// MessageTypeForMime выводит тип сообщения из итогового MIME типа.
func MessageTypeForMime(mimeType string) MessageType {
	mimeType = normalizeMime(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MessageTypeImage
	case mimeType == mimePDF:
		return MessageTypePDF
	case mimeType == mimeDoc || mimeType == mimeDocx:
		return MessageTypeDocument
	case mimeType == mimeXls || mimeType == mimeXlsx:
		return MessageTypeSpreadsheet
	}
	return MessageTypeFile
}

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// DetectMimeType уточняет заявленный тип по сигнатуре содержимого.
// Заявленный тип сохраняется, если он конкретный или сигнатура не распознана.
func DetectMimeType(declared string, data []byte) string {
	if declared != "" && !IsGenericBinary(declared) {
		return declared
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		if declared == "" {
			return "application/octet-stream"
		}
		return declared
	}
	return kind.MIME.Value
}
