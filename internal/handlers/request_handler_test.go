package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"procurement-service/internal/engine"
	"procurement-service/internal/repository"
	"procurement-service/internal/services"
)

// Helper to setup test router
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// Helper to set the identity values the auth middleware would provide
func setIdentity(c *gin.Context, userID uuid.UUID, role string) {
	c.Set("user_id", userID.String())
	c.Set("user_role", role)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &engine.ValidationError{Field: "title", Reason: "must not be empty"}, http.StatusBadRequest},
		{"request not found", services.ErrRequestNotFound, http.StatusNotFound},
		{"step not found", engine.ErrStepNotFound, http.StatusNotFound},
		{"unknown product", services.ErrProductNotFound, http.StatusUnprocessableEntity},
		{"unknown department", services.ErrDepartmentNotFound, http.StatusUnprocessableEntity},
		{"unauthorized", engine.ErrUnauthorized, http.StatusForbidden},
		{"out of order", engine.ErrOutOfOrder, http.StatusConflict},
		{"invalid transition", engine.ErrInvalidTransition, http.StatusConflict},
		{"frozen", engine.ErrRequestFrozen, http.StatusConflict},
		{"duplicate step", engine.ErrStepAlreadyExists, http.StatusConflict},
		{"write conflict", services.ErrConflict, http.StatusConflict},
		{"storage unavailable", repository.ErrUnavailable, http.StatusServiceUnavailable},
		{"anything else", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestDecideStepHandlerValidation(t *testing.T) {
	handler := &RequestHandler{service: nil}
	userID := uuid.New()

	t.Run("missing identity", func(t *testing.T) {
		router := setupTestRouter()
		router.POST("/purchase-requests/:id/steps/:kind/decision", handler.DecideStep)

		w := httptest.NewRecorder()
		body, _ := json.Marshal(map[string]string{"decision": "APPROVED"})
		req, _ := http.NewRequest("POST", "/purchase-requests/"+uuid.New().String()+"/steps/IT/decision", bytes.NewBuffer(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid request id", func(t *testing.T) {
		router := setupTestRouter()
		router.POST("/purchase-requests/:id/steps/:kind/decision", func(c *gin.Context) {
			setIdentity(c, userID, "IT_ADMIN")
			handler.DecideStep(c)
		})

		w := httptest.NewRecorder()
		body, _ := json.Marshal(map[string]string{"decision": "APPROVED"})
		req, _ := http.NewRequest("POST", "/purchase-requests/not-a-uuid/steps/IT/decision", bytes.NewBuffer(body))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing decision", func(t *testing.T) {
		router := setupTestRouter()
		router.POST("/purchase-requests/:id/steps/:kind/decision", func(c *gin.Context) {
			setIdentity(c, userID, "IT_ADMIN")
			handler.DecideStep(c)
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/purchase-requests/"+uuid.New().String()+"/steps/IT/decision", bytes.NewBufferString("{}"))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateRequestHandlerRejectsBadJSON(t *testing.T) {
	handler := &RequestHandler{service: nil}
	router := setupTestRouter()
	router.POST("/purchase-requests", func(c *gin.Context) {
		setIdentity(c, uuid.New(), "STANDARD_USER")
		handler.CreateRequest(c)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/purchase-requests", bytes.NewBufferString("{not json"))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaginationClamping(t *testing.T) {
	router := setupTestRouter()
	var gotLimit, gotOffset int
	router.GET("/probe", func(c *gin.Context) {
		gotLimit, gotOffset = pagination(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe?limit=5000&offset=-3", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, 20, gotLimit)
	assert.Equal(t, 0, gotOffset)
}
