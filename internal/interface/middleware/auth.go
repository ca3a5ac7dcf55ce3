package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-cantina-online/pkg/apperror"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
	"github.com/oksasatya/go-cantina-online/pkg/response"
)

// Context keys set by the middleware in this package.
const (
	CtxUserIDKey    = "userID"
	CtxClaimsKey    = "claims"
	CtxRealIPKey    = "real_ip"
	CtxRequestIDKey = "request_id"
	CtxLoggerKey    = "logger"
)

var (
	errMissingBearer = apperror.Auth(apperror.ReasonMissingToken, "missing access token")
	errInvalidBearer = apperror.Auth(apperror.ReasonInvalidOrExpired, "invalid access token")
)

// Auth validates the bearer access token and stores the subject in the Gin
// context under CtxUserIDKey (int64) and the claims under CtxClaimsKey.
func Auth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			token, ok = strings.CutPrefix(header, "bearer ")
		}
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			response.Fail(c, errMissingBearer)
			return
		}
		claims, err := jwt.VerifyAccessToken(token)
		if err != nil {
			response.Fail(c, errInvalidBearer)
			return
		}
		c.Set(CtxUserIDKey, claims.UserID())
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// UserID returns the authenticated subject, or 0 outside Auth.
func UserID(c *gin.Context) int64 {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}
