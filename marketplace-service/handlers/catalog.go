package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/cache"
	"agromart/marketplace-service/catalog"
	"agromart/marketplace-service/circuitbreaker"
	"agromart/marketplace-service/middleware"
	"agromart/marketplace-service/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	repo           catalog.Repository
	cache          *cache.Catalog
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewCatalogHandler(repo catalog.Repository, listings *cache.Catalog, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		repo:           repo,
		cache:          listings,
		logger:         logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
	}
}

func catalogFilter(c *gin.Context, classParam string) models.CatalogFilter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return models.CatalogFilter{
		SellerID:       c.Query("sellerId"),
		Classification: c.Query(classParam),
		Limit:          limit,
		Offset:         offset,
	}
}

// lookup reads through the cache. Loads run behind the circuit breaker; a
// missing listing does not count as a failure.
func lookup[T any](ctx context.Context, h *CatalogHandler, kind models.ItemKind, id string, load func(context.Context, string) (*T, error)) (*T, error) {
	span := trace.SpanFromContext(ctx)

	var cached T
	hit, err := h.cache.Get(ctx, kind, id, &cached)
	if err != nil {
		h.logger.Warn("Catalog cache read failed", zap.String("item_id", id), zap.Error(err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if hit {
		return &cached, nil
	}

	var (
		value     *T
		lookupErr error
	)
	err = h.circuitBreaker.Execute(func() error {
		value, lookupErr = load(ctx, id)
		if errors.Is(lookupErr, apperr.ErrNotFound) {
			return nil
		}
		return lookupErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		span.SetAttributes(attribute.String("circuit.state", "open"))
	}
	if err == nil {
		err = lookupErr
	}
	if err != nil {
		return nil, err
	}

	if err := h.cache.Set(ctx, kind, id, value); err != nil {
		h.logger.Warn("Catalog cache write failed", zap.String("item_id", id), zap.Error(err))
	}
	return value, nil
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "ListProducts")
	defer span.End()

	products, err := h.repo.ListProducts(ctx, catalogFilter(c, "category"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	respond(c, http.StatusOK, gin.H{"products": products})
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	product, err := lookup(ctx, h, models.KindProduct, id, h.repo.GetProduct)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

type createProductRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Category    models.ProductCategory `json:"category" binding:"required"`
	Price       decimal.Decimal        `json:"price"`
	Stock       int                    `json:"stock"`
	Unit        string                 `json:"unit" binding:"required"`
	Image       string                 `json:"image"`
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.ActorFrom(c)
	if err := auth.Authorize(actor, auth.ActionCreateListing, auth.Resource{}); err != nil {
		respondError(c, h.logger, err)
		return
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		Unit:        req.Unit,
		SellerID:    actor.UserID,
		Image:       req.Image,
	}
	if err := catalog.ValidateProduct(&product); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.repo.CreateProduct(ctx, &product); err != nil {
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.String("product.id", product.ID))
	h.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("seller_id", actor.UserID))
	respond(c, http.StatusCreated, gin.H{"product": product})
}

type updateStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

func (h *CatalogHandler) UpdateProductStock(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "UpdateProductStock")
	defer span.End()

	var req updateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if *req.Stock < 0 {
		respondError(c, h.logger, apperr.Invalid("stock", "must not be negative"))
		return
	}

	id := c.Param("id")
	current, err := h.repo.GetProduct(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := auth.Authorize(middleware.ActorFrom(c), auth.ActionManageListing, auth.ListingResource(current.SellerID)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	product, err := h.repo.SetProductStock(ctx, id, *req.Stock)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.cache.Invalidate(ctx, models.KindProduct, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

func (h *CatalogHandler) ListWasteProducts(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "ListWasteProducts")
	defer span.End()

	list, err := h.repo.ListWasteProducts(ctx, catalogFilter(c, "type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("waste_products.count", len(list)))
	respond(c, http.StatusOK, gin.H{"wasteProducts": list})
}

func (h *CatalogHandler) GetWasteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "GetWasteProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("waste_product.id", id))

	waste, err := lookup(ctx, h, models.KindWasteProduct, id, h.repo.GetWasteProduct)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"wasteProduct": waste})
}

type createWasteRequest struct {
	Name            string            `json:"name" binding:"required"`
	Description     string            `json:"description"`
	Type            models.WasteType  `json:"type" binding:"required"`
	Quantity        decimal.Decimal   `json:"quantity"`
	Unit            string            `json:"unit" binding:"required"`
	Price           decimal.Decimal   `json:"price"`
	Location        string            `json:"location" binding:"required"`
	PossibleUses    []string          `json:"possibleUses"`
	NutrientContent map[string]string `json:"nutrientContent"`
	Image           string            `json:"image"`
}

func (h *CatalogHandler) CreateWasteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "CreateWasteProduct")
	defer span.End()

	var req createWasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.ActorFrom(c)
	if err := auth.Authorize(actor, auth.ActionCreateListing, auth.Resource{}); err != nil {
		respondError(c, h.logger, err)
		return
	}

	waste := models.WasteProduct{
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		Quantity:        req.Quantity,
		Unit:            req.Unit,
		Price:           req.Price,
		Location:        req.Location,
		SellerID:        actor.UserID,
		PossibleUses:    req.PossibleUses,
		NutrientContent: req.NutrientContent,
		Image:           req.Image,
	}
	if err := catalog.ValidateWasteProduct(&waste); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.repo.CreateWasteProduct(ctx, &waste); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Waste product created", zap.String("waste_product_id", waste.ID), zap.String("seller_id", actor.UserID))
	respond(c, http.StatusCreated, gin.H{"wasteProduct": waste})
}

type updateQuantityRequest struct {
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
}

func (h *CatalogHandler) UpdateWasteQuantity(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "UpdateWasteQuantity")
	defer span.End()

	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity.IsNegative() {
		respondError(c, h.logger, apperr.Invalid("quantity", "must not be negative"))
		return
	}

	id := c.Param("id")
	current, err := h.repo.GetWasteProduct(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := auth.Authorize(middleware.ActorFrom(c), auth.ActionManageListing, auth.ListingResource(current.SellerID)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	waste, err := h.repo.SetWasteQuantity(ctx, id, *req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.cache.Invalidate(ctx, models.KindWasteProduct, id); err != nil {
		h.logger.Warn("Failed to invalidate waste product cache", zap.String("waste_product_id", id), zap.Error(err))
	}
	respond(c, http.StatusOK, gin.H{"wasteProduct": waste})
}
