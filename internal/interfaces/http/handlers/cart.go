// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/interfaces/http/middleware"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/pkg/metrics"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	registry *cart.Registry
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(registry *cart.Registry, m *metrics.Metrics, logger logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		registry: registry,
		metrics:  m,
		logger:   logger,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	Product       cart.Product    `json:"product"`
	Quantity      int             `json:"quantity" binding:"omitempty,min=1"`
	SelectedColor string          `json:"selected_color"`
	SelectedSize  string          `json:"selected_size"`
	BlouseOption  string          `json:"blouse_option"`
	Price         decimal.Decimal `json:"price"`
}

// UpdateCartItemRequest represents update cart item request. Color and size
// let the client address a line by product when its id is stale.
type UpdateCartItemRequest struct {
	Quantity      int     `json:"quantity"`
	SelectedColor *string `json:"selected_color"`
	SelectedSize  *string `json:"selected_size"`
}

// CartResponse represents a shopping cart with items and totals
type CartResponse struct {
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	Items     cart.Cart   `json:"items"`
	Totals    cart.Totals `json:"totals"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    h.cartResponse(engine),
	})
}

// ReloadCart handles POST /cart/reload
func (h *CartHandler) ReloadCart(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	engine.Load(c.Request.Context())
	h.metrics.ObserveOperation(string(cart.OperationLoad), "reloaded", sourceOf(engine))

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart reloaded successfully",
		"data":    h.cartResponse(engine),
	})
}

// GetCartCount handles GET /cart/count
func (h *CartHandler) GetCartCount(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart count retrieved successfully",
		"data": gin.H{
			"count": cart.CartCount(engine.Items()),
		},
	})
}

// GetCartTotals handles GET /cart/totals
func (h *CartHandler) GetCartTotals(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart totals retrieved successfully",
		"data":    engine.Totals(),
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}
	if req.Product.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Product is required",
		})
		return
	}

	engine, ok := h.engine(c)
	if !ok {
		return
	}

	result := engine.Add(c.Request.Context(), cart.AddInput{
		Product:      req.Product,
		Quantity:     req.Quantity,
		Color:        req.SelectedColor,
		BlouseOption: req.BlouseOption,
		Size:         req.SelectedSize,
		Price:        req.Price,
	})
	h.respond(c, engine, cart.OperationAdd, result)
}

// UpdateCartItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	engine, ok := h.engine(c)
	if !ok {
		return
	}

	result := engine.UpdateQuantity(c.Request.Context(), c.Param("id"), req.Quantity, req.SelectedColor, req.SelectedSize)
	h.respond(c, engine, cart.OperationUpdate, result)
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	result := engine.Remove(c.Request.Context(), c.Param("id"), optionalQuery(c, "color"), optionalQuery(c, "size"))
	h.respond(c, engine, cart.OperationRemove, result)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	result := engine.Clear(c.Request.Context())
	h.respond(c, engine, cart.OperationClear, result)
}

// EndSession handles DELETE /cart/session, dropping the in-memory cart of the session
func (h *CartHandler) EndSession(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	h.registry.Release(sessionID)
	h.metrics.SetActiveSessions(h.registry.Len())

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart session ended",
	})
}

// engine resolves the session's engine, answering the request on failure
func (h *CartHandler) engine(c *gin.Context) (*cart.Engine, bool) {
	sessionID := middleware.GetSessionID(c)

	principal := cart.Principal{}
	if claims, ok := middleware.GetClaimsFromContext(c); ok {
		principal.UserID = claims.Principal()
	}

	engine, err := h.registry.Acquire(c.Request.Context(), sessionID, principal)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, cart.ErrSessionRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": "Failed to open cart session",
		})
		return nil, false
	}

	h.metrics.SetActiveSessions(h.registry.Len())
	return engine, true
}

func (h *CartHandler) respond(c *gin.Context, engine *cart.Engine, op cart.Operation, result cart.Result) {
	h.metrics.ObserveOperation(string(op), string(result.Outcome), string(result.Source))

	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  result.Message,
			"result": result,
			"data":   h.cartResponse(engine),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": result.Message,
		"result":  result,
		"data":    h.cartResponse(engine),
	})
}

func (h *CartHandler) cartResponse(engine *cart.Engine) CartResponse {
	items := engine.Items()
	return CartResponse{
		SessionID: engine.SessionID(),
		State:     engine.State().String(),
		Items:     items,
		Totals:    cart.ComputeTotals(items),
	}
}

func sourceOf(engine *cart.Engine) string {
	if engine.State() == cart.StateAuthenticated {
		return string(cart.SourceRemote)
	}
	return string(cart.SourceLocal)
}

func optionalQuery(c *gin.Context, key string) *string {
	value, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	return &value
}
