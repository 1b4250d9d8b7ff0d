package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/auth"
	"pos-service/internal/redisclient"
	"pos-service/internal/service"
	"pos-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	sales     *service.SaleService
	payments  *service.PaymentService
	refunds   *service.RefundService
	inventory *service.InventoryService
	catalog   *service.CatalogService
	carts     *service.CartService
	redis     *redisclient.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(
	sales *service.SaleService,
	payments *service.PaymentService,
	refunds *service.RefundService,
	inventory *service.InventoryService,
	catalog *service.CatalogService,
	carts *service.CartService,
	redis *redisclient.Client,
) *Handler {
	return &Handler{
		sales:     sales,
		payments:  payments,
		refunds:   refunds,
		inventory: inventory,
		catalog:   catalog,
		carts:     carts,
		redis:     redis,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(actorMiddleware())
	{
		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.GET("/products/low-stock", h.lowStock)
		v1.GET("/products/:id/movements", h.stockMovements)
		v1.POST("/products/:id/restock", h.restock)
		v1.POST("/products/:id/adjust", h.adjustStock)

		v1.POST("/sales", h.createSale)
		v1.GET("/sales", h.listSales)
		v1.GET("/sales/:id", h.getSale)
		v1.PUT("/sales/:id/customer", h.updateReceiptCustomer)
		v1.DELETE("/sales/:id", h.deleteSale)
		v1.POST("/sales/:id/payments", h.recordPayment)
		v1.GET("/sales/:id/payments", h.paymentHistory)
		v1.GET("/sales/:id/refunds", h.saleRefunds)
		v1.GET("/debtors", h.listDebtors)

		v1.POST("/refund-requests", h.createRefundRequest)
		v1.GET("/refund-requests", h.listRefundRequests)
		v1.GET("/refund-requests/:id", h.getRefundRequest)
		v1.PUT("/refund-requests/:id", h.editRefundRequest)
		v1.POST("/refund-requests/:id/approve", h.approveRefund)
		v1.POST("/refund-requests/:id/decline", h.declineRefund)

		v1.PUT("/cart/pending", h.savePendingCart)
		v1.GET("/cart/pending", h.loadPendingCart)
		v1.DELETE("/cart/pending", h.deletePendingCart)
		v1.PUT("/cart/saved/:name", h.saveNamedCart)
		v1.GET("/cart/saved", h.listNamedCarts)
		v1.GET("/cart/saved/:name", h.loadNamedCart)
		v1.DELETE("/cart/saved/:name", h.deleteNamedCart)

		v1.GET("/notifications/:category", h.listNotifications)
		v1.GET("/notifications/:category/count", h.notificationCount)
		v1.POST("/notifications/:category/read", h.markNotificationsRead)
	}
}

// actorMiddleware derives the acting principal from the headers the session
// collaborator injects upstream. The core only sees id + role.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID"})
			return
		}

		actor := auth.Actor{
			ID:        userID,
			Username:  c.GetHeader("X-Username"),
			Role:      c.GetHeader("X-User-Role"),
			Superuser: c.GetHeader("X-Superuser") == "true",
		}
		c.Set("actor", actor)
		c.Next()
	}
}

func getActor(c *gin.Context) auth.Actor {
	actor, _ := c.Get("actor")
	return actor.(auth.Actor)
}

func (h *Handler) fail(c *gin.Context, err error) {
	c.JSON(statusForError(err), errorBody(err))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// catalog handlers

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product, "stock_status": product.StockStatus()})
}

func (h *Handler) createProduct(c *gin.Context) {
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), getActor(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	product, err := h.catalog.UpdateProduct(c.Request.Context(), getActor(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), getActor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// inventory handlers

func (h *Handler) lowStock(c *gin.Context) {
	products, err := h.inventory.LowStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) stockMovements(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	movements, err := h.inventory.Movements(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

type stockChangeRequest struct {
	Quantity  int    `json:"quantity" binding:"required"`
	Reference string `json:"reference"`
	Notes     string `json:"notes"`
}

func (h *Handler) restock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req stockChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	movement, err := h.inventory.Restock(c.Request.Context(), getActor(c), id, req.Quantity, req.Reference, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"movement": movement})
}

func (h *Handler) adjustStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req stockChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	movement, err := h.inventory.Adjust(c.Request.Context(), getActor(c), id, req.Quantity, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"movement": movement})
}

// sales handlers

func (h *Handler) createSale(c *gin.Context) {
	var in service.CreateSaleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	sale, err := h.sales.CreateSale(c.Request.Context(), getActor(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"sale_id":        sale.ID,
		"invoice_number": sale.InvoiceNumber,
		"total":          sale.Total.StringFixed(2),
		"balance":        sale.Balance.StringFixed(2),
		"payment_status": sale.PaymentStatus,
	})
}

func (h *Handler) listSales(c *gin.Context) {
	sales, err := h.sales.ListSales(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) getSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sale, items, payments, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sale": sale, "items": items, "payments": payments})
}

type customerRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

func (h *Handler) updateReceiptCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := h.sales.UpdateReceiptCustomer(c.Request.Context(), getActor(c), id, req.CustomerName, req.CustomerPhone); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteSale(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.sales.DeleteSale(c.Request.Context(), getActor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// payments handlers

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"payment_method"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

func (h *Handler) recordPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	sale, err := h.payments.RecordPayment(c.Request.Context(), getActor(c), id, req.Amount, req.Method, req.Reference, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"sale_id":        sale.ID,
		"new_balance":    sale.Balance.StringFixed(2),
		"payment_status": sale.PaymentStatus,
	})
}

func (h *Handler) paymentHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sale, payments, err := h.payments.PaymentHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sale": sale, "payments": payments})
}

func (h *Handler) saleRefunds(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	refunds, err := h.refunds.RefundsForSale(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

func (h *Handler) listDebtors(c *gin.Context) {
	debtors, err := h.payments.ListDebtors(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"debtors": debtors})
}

// refunds handlers

func (h *Handler) createRefundRequest(c *gin.Context) {
	var in service.CreateRefundInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	request, err := h.refunds.CreateRequest(c.Request.Context(), getActor(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"refund_request": request})
}

func (h *Handler) listRefundRequests(c *gin.Context) {
	requests, err := h.refunds.ListRequests(c.Request.Context(), getActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund_requests": requests})
}

func (h *Handler) getRefundRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	request, err := h.refunds.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund_request": request})
}

func (h *Handler) editRefundRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in service.EditRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	request, err := h.refunds.EditRequest(c.Request.Context(), getActor(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund_request": request})
}

func (h *Handler) approveRefund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	refund, sale, err := h.refunds.Approve(c.Request.Context(), getActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refund":         refund,
		"sale_id":        sale.ID,
		"new_balance":    sale.Balance.StringFixed(2),
		"payment_status": sale.PaymentStatus,
	})
}

func (h *Handler) declineRefund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.refunds.Decline(c.Request.Context(), getActor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// carts handlers

func (h *Handler) savePendingCart(c *gin.Context) {
	blob, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.carts.SavePending(c.Request.Context(), getActor(c), blob); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) loadPendingCart(c *gin.Context) {
	blob, err := h.carts.LoadPending(c.Request.Context(), getActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if blob == nil {
		c.JSON(http.StatusOK, gin.H{"cart": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": json.RawMessage(blob)})
}

func (h *Handler) deletePendingCart(c *gin.Context) {
	if err := h.carts.DeletePending(c.Request.Context(), getActor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) saveNamedCart(c *gin.Context) {
	blob, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.carts.SaveNamed(c.Request.Context(), getActor(c), c.Param("name"), blob); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listNamedCarts(c *gin.Context) {
	carts, err := h.carts.ListNamed(c.Request.Context(), getActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"carts": carts})
}

func (h *Handler) loadNamedCart(c *gin.Context) {
	blob, err := h.carts.LoadNamed(c.Request.Context(), getActor(c), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": blob})
}

func (h *Handler) deleteNamedCart(c *gin.Context) {
	if err := h.carts.DeleteNamed(c.Request.Context(), getActor(c), c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// notifications handlers

func validCategory(category string) bool {
	switch category {
	case redisclient.CategoryDashboard, redisclient.CategoryDebtors,
		redisclient.CategoryRefunds, redisclient.CategorySales:
		return true
	}
	return false
}

func (h *Handler) listNotifications(c *gin.Context) {
	category := c.Param("category")
	if !validCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}
	notifications, err := h.redis.ListNotifications(c.Request.Context(), getActor(c).ID, category)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *Handler) notificationCount(c *gin.Context) {
	category := c.Param("category")
	if !validCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}
	count, err := h.redis.UnreadCount(c.Request.Context(), getActor(c).ID, category)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) markNotificationsRead(c *gin.Context) {
	category := c.Param("category")
	if !validCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}
	if err := h.redis.ClearCategory(c.Request.Context(), getActor(c).ID, category); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
