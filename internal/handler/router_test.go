package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/kashinote/internal/auth"
	"github.com/hitoshi/kashinote/internal/borrower"
	"github.com/hitoshi/kashinote/internal/middleware"
	"github.com/hitoshi/kashinote/internal/model"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenCodec, *middleware.RateLimiter) {
	t.Helper()

	codec := auth.NewTokenCodec("test-secret", time.Hour)
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(100),
		Burst:           100,
		CleanupInterval: time.Hour,
	})

	loanSvc := &mockLoanService{
		listAllFunc: func(ctx context.Context, owner string) ([]*model.Loan, error) {
			return nil, nil
		},
	}
	borrowerSvc := &mockBorrowerService{}

	router := NewRouter(&RouterDeps{
		TokenVerifier:     codec,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CSRFConfig:        middleware.CSRFConfig{},
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig(),
		BorrowerService:   borrowerSvc,
		LoanService:       loanSvc,
	})
	return router, codec, rl
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router, _, rl := newTestRouter(t)
	defer rl.Stop()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ステータス = %d、期待値 200", rec.Code)
	}
}

func TestRouter_ProtectedRouteRequiresSession(t *testing.T) {
	router, _, rl := newTestRouter(t)
	defer rl.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータス = %d、期待値 401", rec.Code)
	}
}

func TestRouter_AuthenticatedGetSucceeds(t *testing.T) {
	router, codec, rl := newTestRouter(t)
	defer rl.Stop()

	token, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ステータス = %d、期待値 200", rec.Code)
	}
}

func TestRouter_MutatingRequestRequiresCSRFToken(t *testing.T) {
	router, codec, rl := newTestRouter(t)
	defer rl.Stop()

	token, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}

	// セッションはあるがCSRFトークンがないPOSTは403
	req := httptest.NewRequest(http.MethodPost, "/api/borrowers",
		strings.NewReader(`{"name":"山田太郎"}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ステータス = %d、期待値 403", rec.Code)
	}
}

func TestRouter_MutatingRequestWithCSRFTokenSucceeds(t *testing.T) {
	router, codec, rl := newTestRouter(t)
	defer rl.Stop()

	token, err := codec.Issue("alice")
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/borrowers",
		strings.NewReader(`{"name":"山田太郎"}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-1"})
	req.Header.Set("X-CSRF-Token", "tok-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("ステータス = %d、期待値 201", rec.Code)
	}
}

// mockBorrowerService はBorrowerServiceInterfaceのテスト用モック。
type mockBorrowerService struct{}

func (m *mockBorrowerService) Add(ctx context.Context, owner string, input borrower.AddInput) (*model.Borrower, error) {
	return &model.Borrower{ID: 1, Name: input.Name, OwnerID: "alice-uuid"}, nil
}

func (m *mockBorrowerService) List(ctx context.Context, owner string) ([]*model.Borrower, error) {
	return nil, nil
}

func (m *mockBorrowerService) Get(ctx context.Context, id int64, owner string) (*model.Borrower, error) {
	return nil, model.NewBorrowerNotFoundError(id)
}

func (m *mockBorrowerService) Delete(ctx context.Context, id int64, owner string) error {
	return nil
}
