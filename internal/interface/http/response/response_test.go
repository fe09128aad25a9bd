package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", apperror.ErrOrderNotFound, http.StatusNotFound, "NOT_FOUND", "заказ не найден"},
		{"conflict", apperror.ErrAlreadyFinalized, http.StatusConflict, "CONFLICT", "заказ уже финализирован"},
		{"validation", apperror.New(apperror.ErrCodeValidation, "status: недопустимое значение"), http.StatusBadRequest, "VALIDATION_ERROR", "status: недопустимое значение"},
		{"database masked", apperror.Wrap(errors.New("pq: relation missing"), apperror.ErrCodeDatabaseError, "не удалось сохранить заказ"), http.StatusInternalServerError, "DATABASE_ERROR", internalMessage},
		{"plain error masked", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", internalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}

func TestPaginated_HasMore(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Paginated(c, []int{1, 2}, 5, 2, 2)

	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Pagination.HasMore)
	assert.Equal(t, 5, resp.Pagination.Total)
}
