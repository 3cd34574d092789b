package handlers

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/middleware"
	"agromart/marketplace-service/store/postgres"
	"agromart/pkg/events"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const userID = "0f8fad5b-d9cb-469f-a165-70867728950e"

var userCols = []string{"id", "name", "email", "phone", "role", "created_at", "updated_at"}

func setupAuthTest(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *recordingNotifier) {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	sessions := auth.NewSessions(rdb, []byte("test-secret"), time.Hour)
	notifier := &recordingNotifier{}
	handler := NewAuthHandler(postgres.NewStore(db, logger), auth.NewOTP(rdb, 10*time.Minute), sessions, notifier, logger)

	router := gin.New()
	router.POST("/auth/register", handler.Register)
	router.POST("/auth/otp/request", handler.RequestOTP)
	router.POST("/auth/otp/verify", handler.VerifyOTP)
	router.POST("/auth/logout", handler.Logout)
	router.GET("/auth/me", middleware.Authenticate(sessions, logger), handler.Me)
	return router, mock, notifier
}

func userRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userCols).AddRow(userID, "Asha", "asha@example.com", "", "farmer", now, now)
}

func TestRegister(t *testing.T) {
	router, mock, _ := setupAuthTest(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Asha", "asha@example.com", "", "farmer").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	w := doRequest(router, "POST", "/auth/register", "", gin.H{"name": "Asha", "email": "Asha@Example.com", "role": "farmer"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})
	w = doRequest(router, "POST", "/auth/register", "", gin.H{"name": "Asha", "email": "asha@example.com", "role": "farmer"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	w = doRequest(router, "POST", "/auth/register", "", gin.H{"name": "Root", "email": "root@example.com", "role": "admin"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for self-registered admin, got %d", http.StatusBadRequest, w.Code)
	}

	w = doRequest(router, "POST", "/auth/register", "", gin.H{"name": "Asha", "email": "not-an-email", "role": "buyer"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d for a bad email, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestOTPLoginFlow(t *testing.T) {
	router, mock, notifier := setupAuthTest(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("asha@example.com").
		WillReturnRows(userRow())

	w := doRequest(router, "POST", "/auth/otp/request", "", gin.H{"email": "asha@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	reqs := notifier.requests()
	if len(reqs) != 1 || reqs[0].Type != events.TypeOTPRequested {
		t.Fatalf("Expected one otp notification, got %+v", reqs)
	}
	code := reqs[0].Data["code"]
	if len(code) != 6 {
		t.Fatalf("Expected a six digit code, got %q", code)
	}

	w = doRequest(router, "POST", "/auth/otp/verify", "", gin.H{"email": "asha@example.com", "code": "not-it"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d for a wrong code, got %d", http.StatusUnauthorized, w.Code)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("asha@example.com").
		WillReturnRows(userRow())
	w = doRequest(router, "POST", "/auth/otp/verify", "", gin.H{"email": "asha@example.com", "code": code})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	if resp.Token == "" {
		t.Fatal("Expected a session token")
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(userID).
		WillReturnRows(userRow())
	w = doRequest(router, "GET", "/auth/me", resp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	w = doRequest(router, "POST", "/auth/logout", resp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	w = doRequest(router, "GET", "/auth/me", resp.Token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d after logout, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestRequestOTP_UnknownEmail(t *testing.T) {
	router, mock, notifier := setupAuthTest(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	w := doRequest(router, "POST", "/auth/otp/request", "", gin.H{"email": "ghost@example.com"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if len(notifier.requests()) != 0 {
		t.Error("Expected no notification for an unknown email")
	}
}
