package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-cantina-online/internal/application"
	"github.com/oksasatya/go-cantina-online/internal/interface/middleware"
	"github.com/oksasatya/go-cantina-online/pkg/apperror"
	"github.com/oksasatya/go-cantina-online/pkg/response"
)

var errInvalidUserID = apperror.Validation(apperror.ReasonInvalidPayload, "userId must be a positive integer").
	WithDetails(map[string]string{"userId": "must be a positive integer"})

type OrderHandler struct {
	Svc *application.OrderService
}

func NewOrderHandler(svc *application.OrderService) *OrderHandler {
	return &OrderHandler{Svc: svc}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req application.PlaceOrderInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Svc.PlaceOrder(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// ListOrders serves GET /api/orders?userId=.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("userId"))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		response.Fail(c, errInvalidUserID)
		return
	}
	orders, err := h.Svc.ListOrders(c.Request.Context(), middleware.UserID(c), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders)
}
