package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"procurement-service/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

func authProbe() (*gin.Engine, *models.Actor) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var captured models.Actor

	router.Use(Auth(testSecret))
	router.GET("/probe", func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		captured = actor
		c.Status(http.StatusOK)
	})
	return router, &captured
}

func TestAuthAcceptsValidToken(t *testing.T) {
	router, captured := authProbe()
	userID := uuid.New()
	dept := uuid.New()

	token := signToken(t, jwt.MapClaims{
		"sub":           userID.String(),
		"role":          models.RoleDepartmentManager,
		"department_id": dept.String(),
		"exp":           time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, captured.ID)
	assert.Equal(t, models.RoleDepartmentManager, captured.Role)
	assert.Equal(t, dept, captured.DepartmentID)
}

func TestAuthRejections(t *testing.T) {
	router, _ := authProbe()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong signature", "Bearer " + func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub":  uuid.New().String(),
				"role": models.RoleAdmin,
			})
			signed, _ := token.SignedString([]byte("other-secret"))
			return signed
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/probe", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestAuthRejectsUnknownRole(t *testing.T) {
	router, _ := authProbe()

	token := signToken(t, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": "SUPERVISOR",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	router, _ := authProbe()

	token := signToken(t, jwt.MapClaims{
		"sub":  uuid.New().String(),
		"role": models.RoleAdmin,
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
