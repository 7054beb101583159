package utils

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// VerifyBearerToken checks the Authorization header carries a valid token.
// Token issuance lives in the accounts service; this side only verifies.
func VerifyBearerToken(authHeader string) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return errors.New("invalid authorization header format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// AuthRequired guards the operator endpoints (manual order updates and
// deletes).
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No Token Available"})
			c.Abort()
			return
		}
		if err := VerifyBearerToken(authHeader); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not Authorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
