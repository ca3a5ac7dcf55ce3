package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-cantina-online/internal/interface/http"
)

type CatalogModule struct {
	Handler *handlers.CatalogHandler
}

func NewCatalogModule(h *handlers.CatalogHandler) *CatalogModule {
	return &CatalogModule{Handler: h}
}

func (m *CatalogModule) Register(rg *gin.RouterGroup) {
	rg.GET("/products", m.Handler.ListProducts)
	rg.GET("/categories", m.Handler.ListCategories)
}
