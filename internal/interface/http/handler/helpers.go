package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/http/middleware"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// multipartOverhead: запас на заголовки и прочие поля формы сверх размера файла.
const multipartOverhead = 1 << 20

func currentActor(c *gin.Context) (valueobject.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return valueobject.Actor{}, false
	}
	return actor, true
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "параметр "+name+" должен быть валидным UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// pageParams читает limit/offset и приводит их к допустимым границам.
func pageParams(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := parseIntQuery(c, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type uploadedFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// readUpload читает файл формы field. Файл больше maxSize отклоняется, не дочитываясь до конца.
func readUpload(c *gin.Context, field string, maxSize int64) (*uploadedFile, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "%s: размер превышает %d МБ", field, maxSize/(1024*1024))
		}
		return nil, apperror.Newf(apperror.ErrCodeValidation, "%s: файл не передан", field)
	}
	if header.Size > maxSize {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "%s: размер превышает %d МБ", field, maxSize/(1024*1024))
	}

	f, err := header.Open()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть загруженный файл")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось прочитать загруженный файл")
	}

	return &uploadedFile{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
