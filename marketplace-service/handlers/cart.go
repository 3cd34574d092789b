package handlers

import (
	"net/http"
	"strconv"

	"agromart/marketplace-service/cart"
	"agromart/marketplace-service/middleware"
	"agromart/marketplace-service/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts  *cart.Service
	logger *zap.Logger
}

func NewCartHandler(carts *cart.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type addToCartRequest struct {
	ProductID      string `json:"productId" binding:"required"`
	Quantity       int    `json:"quantity"`
	IsWasteProduct bool   `json:"isWasteProduct"`
}

type updateCartRequest struct {
	Quantity       int  `json:"quantity"`
	IsWasteProduct bool `json:"isWasteProduct"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "GetCart")
	defer span.End()

	view, err := h.carts.Get(ctx, middleware.ActorFrom(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("cart.items", len(view.Items)))
	respond(c, http.StatusOK, gin.H{"cart": view})
}

func (h *CartHandler) AddItem(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "AddToCart")
	defer span.End()

	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("item.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	view, err := h.carts.Add(ctx, middleware.ActorFrom(c).UserID, models.KindOf(req.IsWasteProduct), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"cart": view})
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "UpdateCartItem")
	defer span.End()

	var req updateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	kind := models.KindOf(req.IsWasteProduct || wasteQuery(c))

	view, err := h.carts.Update(ctx, middleware.ActorFrom(c).UserID, kind, c.Param("productId"), req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"cart": view})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "RemoveCartItem")
	defer span.End()

	view, err := h.carts.Remove(ctx, middleware.ActorFrom(c).UserID, models.KindOf(wasteQuery(c)), c.Param("productId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"cart": view})
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "ClearCart")
	defer span.End()

	if err := h.carts.Clear(ctx, middleware.ActorFrom(c).UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Cart cleared"})
}

func wasteQuery(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("isWasteProduct"))
	return v
}
