package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-cantina-online/internal/interface/http"
	"github.com/oksasatya/go-cantina-online/internal/interface/middleware"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
)

type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
	Redis   redis.Cmdable
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager, rdb redis.Cmdable) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt, Redis: rdb}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/auth")

	// Public endpoints with IP-based rate limits
	g.POST("/register", middleware.RateLimit(m.Redis, "register", 5, time.Minute, nil), m.Handler.Register)
	g.POST("/login", middleware.RateLimit(m.Redis, "login", 10, time.Minute, nil), m.Handler.Login)
	g.POST("/refresh", middleware.RateLimit(m.Redis, "refresh", 60, time.Minute, nil), m.Handler.Refresh)
	g.POST("/logout", m.Handler.Logout)
	g.POST("/forgot-password", middleware.RateLimit(m.Redis, "forgot_password", 5, time.Minute, nil), m.Handler.ForgotPassword)
	g.POST("/reset-password", middleware.RateLimit(m.Redis, "reset_password", 30, time.Minute, nil), m.Handler.ResetPassword)
	g.GET("/verify-reset-token", middleware.RateLimit(m.Redis, "reset_password", 30, time.Minute, nil), m.Handler.VerifyResetToken)

	auth := g.Group("")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.GET("/me", m.Handler.Me)
		auth.PUT("/profile", m.Handler.UpdateProfile)
	}
}
