package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"procurement-service/internal/models"
)

// Auth validates the bearer token and stores the caller's identity on the
// gin context. Tokens carry sub (user id), role and department_id claims.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if sub == "" || !models.ValidRole(role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing identity claims"})
			return
		}

		c.Set("user_id", sub)
		c.Set("user_role", role)
		if dept, _ := claims["department_id"].(string); dept != "" {
			c.Set("department_id", dept)
		}

		c.Next()
	}
}

// ActorFromContext rebuilds the authenticated actor from the context values
// set by Auth. The bool is false when the values are absent or malformed.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		return models.Actor{}, false
	}

	actor := models.Actor{
		ID:   userID,
		Role: c.GetString("user_role"),
	}
	if deptStr := c.GetString("department_id"); deptStr != "" {
		if dept, err := uuid.Parse(deptStr); err == nil {
			actor.DepartmentID = dept
		}
	}
	return actor, true
}
