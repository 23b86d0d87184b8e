package middleware

import (
	"net/http"
	"strings"

	"github.com/damymess/keroxio-image/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by JWTAuth.
const (
	CtxUserID     = "user_id"
	CtxUserEmail  = "user_email"
	CtxGarageName = "garage_name"
)

// JWTAuth validates the bearer token and stores the subject claims on the
// context. Tokens without a sub claim are rejected.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "invalid token")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(CtxUserID, sub)
		if email, ok := claims["email"].(string); ok {
			c.Set(CtxUserEmail, email)
		}
		if garage, ok := claims["garage_name"].(string); ok {
			c.Set(CtxGarageName, garage)
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{
		Success: false,
		Message: msg,
	})
}
