package handlers

import (
	"errors"
	"net/http"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/circuitbreaker"
	"agromart/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, body gin.H) {
	body["success"] = true
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondError maps the apperr kinds onto HTTP responses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	trace.SpanFromContext(c.Request.Context()).RecordError(err)
	traceID := telemetry.GetTraceID(c.Request.Context())

	var (
		ve  *apperr.ValidationError
		ise *apperr.InsufficientStockError
		sve *apperr.StockValidationError
		nf  *apperr.NotFoundError
		ite *apperr.InvalidTransitionError
		pfe *apperr.PartialFulfillmentError
	)
	switch {
	// Checked first: its cause may itself be a stock or not-found error.
	case errors.As(err, &pfe):
		logger.Error("Inventory reconciliation required",
			zap.String("trace_id", traceID),
			zap.String("order_number", pfe.OrderNumber),
			zap.Strings("item_ids", pfe.Items),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ve.Error())
	case errors.Is(err, apperr.ErrEmptyCart):
		fail(c, http.StatusBadRequest, "Cart is empty")
	case errors.As(err, &sve):
		body := gin.H{
			"success": false,
			"message": "Some items in your cart are unavailable",
			"errors":  stockProblems(sve.Problems),
		}
		if len(sve.Problems) == 1 {
			body["message"] = sve.Problems[0].Error()
			if errors.As(sve.Problems[0], &ise) {
				body["itemId"] = ise.ItemID
				body["availableQuantity"] = ise.Available.InexactFloat64()
			}
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ise):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":           false,
			"message":           ise.Error(),
			"itemId":            ise.ItemID,
			"availableQuantity": ise.Available.InexactFloat64(),
		})
	case errors.As(err, &nf):
		fail(c, http.StatusNotFound, nf.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Not authorized")
	case errors.Is(err, auth.ErrInvalidCode), errors.Is(err, auth.ErrTooManyAttempts):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		fail(c, http.StatusForbidden, "Access denied")
	case errors.As(err, &ite):
		fail(c, http.StatusBadRequest, ite.Error())
	case errors.Is(err, apperr.ErrDuplicate):
		fail(c, http.StatusConflict, "Already exists")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		fail(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		logger.Error("Request failed", zap.String("trace_id", traceID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func stockProblems(problems []error) []gin.H {
	out := make([]gin.H, 0, len(problems))
	for _, p := range problems {
		var (
			ise *apperr.InsufficientStockError
			nf  *apperr.NotFoundError
		)
		switch {
		case errors.As(p, &ise):
			out = append(out, gin.H{
				"itemId":            ise.ItemID,
				"message":           ise.Error(),
				"availableQuantity": ise.Available.InexactFloat64(),
			})
		case errors.As(p, &nf):
			out = append(out, gin.H{"itemId": nf.ID, "message": nf.Error()})
		default:
			out = append(out, gin.H{"message": p.Error()})
		}
	}
	return out
}
