package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/kashinote/internal/loan"
	"github.com/hitoshi/kashinote/internal/middleware"
	"github.com/hitoshi/kashinote/internal/model"
)

// mockLoanService はLoanServiceInterfaceのテスト用モック。
type mockLoanService struct {
	addFunc        func(ctx context.Context, owner string, input loan.AddInput) (*model.Loan, error)
	listAllFunc    func(ctx context.Context, owner string) ([]*model.Loan, error)
	listActiveFunc func(ctx context.Context, owner string) ([]*model.Loan, error)
	getFunc        func(ctx context.Context, id int64, owner string) (*model.Loan, error)
	deleteFunc     func(ctx context.Context, id int64, owner string) error
	repayFunc      func(ctx context.Context, id int64, owner string, amount decimal.Decimal) (*model.Loan, error)
}

func (m *mockLoanService) Add(ctx context.Context, owner string, input loan.AddInput) (*model.Loan, error) {
	return m.addFunc(ctx, owner, input)
}

func (m *mockLoanService) ListAll(ctx context.Context, owner string) ([]*model.Loan, error) {
	return m.listAllFunc(ctx, owner)
}

func (m *mockLoanService) ListActive(ctx context.Context, owner string) ([]*model.Loan, error) {
	return m.listActiveFunc(ctx, owner)
}

func (m *mockLoanService) Get(ctx context.Context, id int64, owner string) (*model.Loan, error) {
	return m.getFunc(ctx, id, owner)
}

func (m *mockLoanService) Delete(ctx context.Context, id int64, owner string) error {
	return m.deleteFunc(ctx, id, owner)
}

func (m *mockLoanService) Repay(ctx context.Context, id int64, owner string, amount decimal.Decimal) (*model.Loan, error) {
	return m.repayFunc(ctx, id, owner, amount)
}

// newLoanRequest は認証済みコンテキストとchiのURLパラメータを備えたリクエストを生成する。
func newLoanRequest(method, target, body, username, idParam string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.ContextWithUsername(req.Context(), username)
	if idParam != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", idParam)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestRepay_ReturnsUpdatedLoan(t *testing.T) {
	svc := &mockLoanService{
		repayFunc: func(ctx context.Context, id int64, owner string, amount decimal.Decimal) (*model.Loan, error) {
			if !amount.Equal(decimal.RequireFromString("30.50")) {
				t.Errorf("返済額 = %s、期待値 30.50", amount)
			}
			return &model.Loan{
				ID:       id,
				Amount:   decimal.RequireFromString("69.50"),
				Currency: "USD",
				Status:   model.LoanStatusActive,
			}, nil
		},
	}
	h := NewLoanHandler(svc)

	req := newLoanRequest(http.MethodPut, "/api/loans/1/repay", `{"amount":"30.50"}`, "alice", "1")
	rec := httptest.NewRecorder()
	h.Repay(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d、期待値 200", rec.Code)
	}
	var body loanResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Amount != "69.50" {
		t.Errorf("残高 = %s、期待値 69.50", body.Amount)
	}
	if body.Status != "ACTIVE" {
		t.Errorf("ステータス = %s、期待値 ACTIVE", body.Status)
	}
}

func TestRepay_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "未検出", err: model.NewLoanNotFoundError(1), wantStatus: http.StatusNotFound},
		{name: "返済済み", err: model.NewLoanAlreadyRepaidError(1), wantStatus: http.StatusConflict},
		{name: "競合", err: model.NewRepaymentConflictError(1), wantStatus: http.StatusConflict},
		{name: "検証エラー", err: model.NewValidationFailedError("x"), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLoanService{
				repayFunc: func(ctx context.Context, id int64, owner string, amount decimal.Decimal) (*model.Loan, error) {
					return nil, tt.err
				},
			}
			h := NewLoanHandler(svc)

			req := newLoanRequest(http.MethodPut, "/api/loans/1/repay", `{"amount":"10"}`, "alice", "1")
			rec := httptest.NewRecorder()
			h.Repay(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("ステータス = %d、期待値 %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestGet_ForeignLoanReturns404(t *testing.T) {
	svc := &mockLoanService{
		getFunc: func(ctx context.Context, id int64, owner string) (*model.Loan, error) {
			// 他ユーザー所有の貸付はサービス層で未検出になる
			return nil, model.NewLoanNotFoundError(id)
		},
	}
	h := NewLoanHandler(svc)

	req := newLoanRequest(http.MethodGet, "/api/loans/7", "", "mallory", "7")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("ステータス = %d、期待値 404", rec.Code)
	}
}

func TestCreate_InvalidDateRejected(t *testing.T) {
	h := NewLoanHandler(&mockLoanService{})

	req := newLoanRequest(http.MethodPost, "/api/loans",
		`{"borrower_id":1,"amount":"100","date_lent":"01/02/2024"}`, "alice", "")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータス = %d、期待値 400", rec.Code)
	}
}

func TestCreate_NonNumericIDRejected(t *testing.T) {
	h := NewLoanHandler(&mockLoanService{})

	req := newLoanRequest(http.MethodGet, "/api/loans/abc", "", "alice", "abc")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータス = %d、期待値 400", rec.Code)
	}
}

func TestList_ActiveFilter(t *testing.T) {
	activeCalled := false
	svc := &mockLoanService{
		listActiveFunc: func(ctx context.Context, owner string) ([]*model.Loan, error) {
			activeCalled = true
			return nil, nil
		},
	}
	h := NewLoanHandler(svc)

	req := newLoanRequest(http.MethodGet, "/api/loans?status=active", "", "alice", "")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d、期待値 200", rec.Code)
	}
	if !activeCalled {
		t.Error("status=activeでListActiveが呼ばれていない")
	}
	// 空一覧はnullではなく[]で返す
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("ボディ = %s、期待値 []", rec.Body.String())
	}
}
