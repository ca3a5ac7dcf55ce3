package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-cantina-online/internal/application"
	"github.com/oksasatya/go-cantina-online/pkg/response"
)

type CatalogHandler struct {
	Svc *application.CatalogService
}

func NewCatalogHandler(svc *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{Svc: svc}
}

// ListProducts serves GET /api/products?category=<slug>&q=<text>.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.Svc.ListProducts(c.Request.Context(), application.ProductQuery{
		Category: c.Query("category"),
		Q:        c.Query("q"),
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, products)
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.Svc.ListCategories(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories)
}
