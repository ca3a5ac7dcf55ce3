package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-cantina-online/internal/interface/http"
	"github.com/oksasatya/go-cantina-online/internal/interface/middleware"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
)

type OrderModule struct {
	Handler *handlers.OrderHandler
	JWT     *helpers.JWTManager
}

func NewOrderModule(h *handlers.OrderHandler, jwt *helpers.JWTManager) *OrderModule {
	return &OrderModule{Handler: h, JWT: jwt}
}

func (m *OrderModule) Register(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.Use(middleware.Auth(m.JWT))
	{
		orders.POST("", m.Handler.PlaceOrder)
		orders.GET("", m.Handler.ListOrders)
	}
}
