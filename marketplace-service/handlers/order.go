package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/middleware"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/notify"
	"agromart/marketplace-service/orders"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Notifier interface {
	Dispatch(ctx context.Context, reqs ...notify.Request)
}

// StockCache drops cached listings whose stock an order changed.
type StockCache interface {
	InvalidateLines(ctx context.Context, lines []models.LineItem) error
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type OrderHandler struct {
	engine   *orders.Engine
	users    UserLookup
	notifier Notifier
	cache    StockCache
	logger   *zap.Logger
}

func NewOrderHandler(
	engine *orders.Engine,
	users UserLookup,
	notifier Notifier,
	cache StockCache,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		engine:   engine,
		users:    users,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}
}

type createOrderRequest struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   models.PaymentMethod   `json:"paymentMethod"`
	PaymentDetails  models.PaymentDetails  `json:"paymentDetails"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.ActorFrom(c)
	span.SetAttributes(attribute.String("user_id", actor.UserID))

	placement, err := h.engine.PlaceOrder(ctx, orders.PlaceOrderInput{
		Buyer:           actor,
		BuyerEmail:      h.email(ctx, actor.UserID),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentDetails:  req.PaymentDetails,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.invalidate(ctx, placement.Order.Items)
	h.notifier.Dispatch(ctx, placement.Notifications...)

	span.SetAttributes(attribute.String("order.number", placement.Order.OrderNumber))
	respond(c, http.StatusCreated, gin.H{"order": placement.Order})
}

// email is best effort: an order without a buyer email still gets in-app
// notifications.
func (h *OrderHandler) email(ctx context.Context, userID string) string {
	if h.users == nil {
		return ""
	}
	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.logger.Warn("Failed to load buyer email", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return u.Email
}

func (h *OrderHandler) invalidate(ctx context.Context, lines []models.LineItem) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateLines(ctx, lines); err != nil {
		h.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

func (h *OrderHandler) MyOrders(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "MyOrders")
	defer span.End()

	actor := middleware.ActorFrom(c)
	page, limit := pageParams(c)
	filter := models.OrderFilter{
		BuyerID: actor.UserID,
		Status:  models.OrderStatus(c.Query("status")),
		Page:    page,
		Limit:   limit,
	}
	var err error
	if filter.From, filter.To, err = optionalRange(c); err != nil {
		respondError(c, h.logger, err)
		return
	}

	list, total, err := h.engine.ListOrders(ctx, actor, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.Int("orders.count", len(list)))
	respond(c, http.StatusOK, gin.H{
		"orders": list,
		"page":   page,
		"pages":  (total + limit - 1) / limit,
		"total":  total,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	actor := middleware.ActorFrom(c)
	order, err := h.engine.GetOrder(ctx, id, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// sellers only see the value of their own lines
	subtotal := order.Subtotal
	if !actor.IsAdmin() && actor.UserID != order.BuyerID {
		subtotal = order.SellerSubtotal(actor.UserID)
	}
	respond(c, http.StatusOK, gin.H{
		"order":     order,
		"subtotal":  subtotal,
		"itemCount": order.ItemCount(),
	})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "CancelOrder")
	defer span.End()

	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.engine.CancelOrder(ctx, c.Param("id"), middleware.ActorFrom(c), req.Reason)
	h.afterTransition(ctx, t)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"order": t.Order})
}

type updateStatusRequest struct {
	Status         models.OrderStatus `json:"status" binding:"required"`
	Notes          string             `json:"notes"`
	TrackingNumber string             `json:"trackingNumber"`
	Carrier        string             `json:"carrier"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("order.status", string(req.Status)))

	t, err := h.engine.UpdateStatus(ctx, c.Param("id"), middleware.ActorFrom(c), orders.StatusUpdate{
		Status:         req.Status,
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	h.afterTransition(ctx, t)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"order": t.Order})
}

// afterTransition runs for committed transitions, including cancellations
// that left stock unreconciled.
func (h *OrderHandler) afterTransition(ctx context.Context, t *orders.Transition) {
	if t == nil || !t.Changed {
		return
	}
	if t.Order.Status == models.StatusCancelled {
		h.invalidate(ctx, t.Order.Items)
	}
	h.notifier.Dispatch(ctx, t.Notifications...)
}

func (h *OrderHandler) Stats(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "OrderStats")
	defer span.End()

	from, to, err := statsRange(c, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	stats, err := h.engine.Stats(ctx, middleware.ActorFrom(c), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"stats": stats})
}

func (h *OrderHandler) Export(c *gin.Context) {
	ctx, span := otel.Tracer("marketplace-service").Start(c.Request.Context(), "ExportOrders")
	defer span.End()

	from, to, err := statsRange(c, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	list, err := h.engine.Export(ctx, middleware.ActorFrom(c), from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := orders.WriteXLSX(&buf, list); err != nil {
		respondError(c, h.logger, err)
		return
	}

	name := fmt.Sprintf("orders-%s-%s.xlsx", from.Format(dateLayout), to.AddDate(0, 0, -1).Format(dateLayout))
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// optionalRange parses startDate and endDate as whole days; endDate is
// inclusive. Missing values stay zero.
func optionalRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := c.Query("startDate"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return from, to, apperr.Invalid("startDate", "expected YYYY-MM-DD")
		}
		from = d
	}
	if raw := c.Query("endDate"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return from, to, apperr.Invalid("endDate", "expected YYYY-MM-DD")
		}
		to = d.AddDate(0, 0, 1)
	}
	return from, to, nil
}

// statsRange defaults to the 30 days ending today.
func statsRange(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	from, to, err := optionalRange(c)
	if err != nil {
		return from, to, err
	}
	if to.IsZero() {
		y, m, d := now.UTC().Date()
		to = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return from, to, nil
}
