package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/middleware"
	"agromart/marketplace-service/models"
	"agromart/marketplace-service/notify"
	"agromart/pkg/events"
	"agromart/pkg/telemetry"
	"agromart/pkg/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandler struct {
	users    UserStore
	otp      *auth.OTP
	sessions *auth.Sessions
	notifier Notifier
	logger   *zap.Logger
}

func NewAuthHandler(users UserStore, otp *auth.OTP, sessions *auth.Sessions, notifier Notifier, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		otp:      otp,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

type registerRequest struct {
	Name  string      `json:"name" binding:"required"`
	Email string      `json:"email" binding:"required"`
	Phone string      `json:"phone"`
	Role  models.Role `json:"role" binding:"required"`
}

type otpRequest struct {
	Email string `json:"email" binding:"required"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Invalid("email", "is not a valid address")
	}
	return email, nil
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	// admins are provisioned, never self-registered
	if !req.Role.Valid() || req.Role == models.RoleAdmin {
		respondError(c, h.logger, apperr.Invalid("role", "unsupported role %q", req.Role))
		return
	}

	user := models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Phone: req.Phone,
		Role:  req.Role,
	}
	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			fail(c, http.StatusConflict, "User already exists")
			return
		}
		respondError(c, h.logger, err)
		return
	}

	traceID := telemetry.GetTraceID(c.Request.Context())
	h.logger.Info("User registered", zap.String("trace_id", traceID), zap.String("user_id", user.ID))
	respond(c, http.StatusCreated, gin.H{"user": user})
}

// RequestOTP answers the same way whether or not the account exists.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		h.logger.Info("Login code requested for unknown email")
	case err != nil:
		respondError(c, h.logger, err)
		return
	default:
		code, err := h.otp.Issue(ctx, email)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		h.notifier.Dispatch(ctx, notify.Request{
			Type:        events.TypeOTPRequested,
			RecipientID: user.ID,
			Email:       user.Email,
			Data:        map[string]string{"code": code},
		})
	}

	respond(c, http.StatusOK, gin.H{"message": "If the account exists, a login code has been sent"})
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.otp.Verify(ctx, email, strings.TrimSpace(req.Code)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	user, err := h.users.GetUserByEmail(ctx, email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	sessionToken, err := h.sessions.Create(ctx, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("User logged in", zap.String("user_id", user.ID))
	respond(c, http.StatusOK, gin.H{"token": sessionToken, "user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := token.FromHeader(c.GetHeader("Authorization"))
	if !ok {
		respondError(c, h.logger, apperr.ErrUnauthorized)
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), raw); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}
