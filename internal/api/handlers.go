package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aditpra/smartcare-server/internal/apperrors"
	"github.com/aditpra/smartcare-server/internal/models"
	"github.com/aditpra/smartcare-server/internal/notify"
	"github.com/aditpra/smartcare-server/internal/service"
)

// Handler holds the API handlers
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	auth := api.Group("", AuthMiddleware())

	auth.GET("/users", RequireRole(models.RoleAdmin), h.ListUsers)
	auth.PUT("/users/:id/verify", RequireRole(models.RoleAdmin), h.VerifyUser)

	auth.POST("/orders", h.CreateOrder)
	auth.GET("/orders", h.ListOrders)
	auth.GET("/orders/:id", h.GetOrder)
	auth.PUT("/orders/:id/status", h.TransitionOrder)

	auth.GET("/balance", h.GetBalance)
	auth.GET("/balance/history", h.GetHistory)
	auth.POST("/balance/topup", h.RequestTopup)
	auth.PUT("/balance/topup/:id/resolve", RequireRole(models.RoleAdmin), h.ResolveTopup)

	auth.GET("/chat/:partnerId", h.GetConversation)
	auth.POST("/chat", h.SendMessage)

	auth.GET("/events", h.StreamEvents)
}

// Register handles POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListUsers handles GET /api/users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UsersResponse{Status: "success", Users: users})
}

// VerifyUser handles PUT /api/users/:id/verify (admin only)
func (h *Handler) VerifyUser(c *gin.Context) {
	var req models.VerifyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.svc.VerifyUser(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{Status: "success", Message: "Verification updated"})
}

// CreateOrder handles POST /api/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.OrderResponse{Status: "success", Order: order})
}

// ListOrders handles GET /api/orders
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.svc.ListOrders(c.Request.Context(),
		c.GetString("userId"), models.Role(c.GetString("role")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.OrdersResponse{Status: "success", Orders: orders})
}

// GetOrder handles GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"),
		c.GetString("userId"), models.Role(c.GetString("role")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.OrderResponse{Status: "success", Order: order})
}

// TransitionOrder handles PUT /api/orders/:id/status
func (h *Handler) TransitionOrder(c *gin.Context) {
	var req models.TransitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.svc.TransitionOrder(c.Request.Context(), c.Param("id"),
		c.GetString("userId"), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.OrderResponse{Status: "success", Order: order})
}

// GetBalance handles GET /api/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.GetString("userId")

	balance, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{Status: "success", UserID: userID, Balance: balance})
}

// GetHistory handles GET /api/balance/history
func (h *Handler) GetHistory(c *gin.Context) {
	userID := c.GetString("userId")

	txns, err := h.svc.GetHistory(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.HistoryResponse{Status: "success", UserID: userID, Transactions: txns})
}

// RequestTopup handles POST /api/balance/topup
func (h *Handler) RequestTopup(c *gin.Context) {
	var req models.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	txn, err := h.svc.ApplyTransaction(c.Request.Context(), c.GetString("userId"),
		req.Amount, models.TransactionTopup, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.TransactionResponse{Status: "success", Transaction: txn})
}

// ResolveTopup handles PUT /api/balance/topup/:id/resolve (admin only)
func (h *Handler) ResolveTopup(c *gin.Context) {
	var req models.ResolveTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	txn, err := h.svc.ResolveTopup(c.Request.Context(), c.Param("id"), req.Resolution)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TransactionResponse{Status: "success", Transaction: txn})
}

// GetConversation handles GET /api/chat/:partnerId
func (h *Handler) GetConversation(c *gin.Context) {
	messages, err := h.svc.GetConversation(c.Request.Context(),
		c.GetString("userId"), c.Param("partnerId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ConversationResponse{Status: "success", Messages: messages})
}

// SendMessage handles POST /api/chat
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.MessageResponse{Status: "success", Message: msg})
}

// StreamEvents handles GET /api/events. It streams the caller's change
// events as server-sent events until the client disconnects. The
// optional "entity" query parameter narrows the stream to "order" or
// "ledger" events.
func (h *Handler) StreamEvents(c *gin.Context) {
	sub := h.svc.Subscribe(c.GetString("userId"), notify.EntityType(c.Query("entity")))
	defer sub.Cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("change", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// respondError writes a domain error as a JSON error response
func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatusFromError(err), models.ErrorResponse{
		Status:  "error",
		Code:    apperrors.CodeFromError(err),
		Message: err.Error(),
	})
}

// respondBindError writes a request binding failure as a 400
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "VALIDATION",
		Message: err.Error(),
	})
}
