package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kashinote/internal/loan"
	"github.com/hitoshi/kashinote/internal/middleware"
	"github.com/hitoshi/kashinote/internal/model"
)

// dateLayout はリクエスト・レスポンスの日付形式。
const dateLayout = "2006-01-02"

// LoanServiceInterface は貸付ハンドラーが必要とするサービスインターフェース。
type LoanServiceInterface interface {
	Add(ctx context.Context, ownerUsername string, input loan.AddInput) (*model.Loan, error)
	ListAll(ctx context.Context, ownerUsername string) ([]*model.Loan, error)
	ListActive(ctx context.Context, ownerUsername string) ([]*model.Loan, error)
	Get(ctx context.Context, id int64, ownerUsername string) (*model.Loan, error)
	Delete(ctx context.Context, id int64, ownerUsername string) error
	Repay(ctx context.Context, id int64, ownerUsername string, amount decimal.Decimal) (*model.Loan, error)
}

// LoanHandler は貸付管理のHTTPハンドラー。
type LoanHandler struct {
	service LoanServiceInterface
}

// NewLoanHandler はLoanHandlerを生成する。
func NewLoanHandler(service LoanServiceInterface) *LoanHandler {
	return &LoanHandler{
		service: service,
	}
}

// loanRequest は貸付登録リクエストのボディ。
// 金額は浮動小数点の丸め誤差を避けるため文字列でも受け付ける。
type loanRequest struct {
	BorrowerID int64           `json:"borrower_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	DateLent   string          `json:"date_lent,omitempty"` // YYYY-MM-DD
	DueDate    string          `json:"due_date,omitempty"`  // YYYY-MM-DD
}

// repayRequest は返済リクエストのボディ。
type repayRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// loanResponse は貸付情報のAPIレスポンス。
// amountは残高を表す。
type loanResponse struct {
	ID         int64     `json:"id"`
	BorrowerID int64     `json:"borrower_id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	DateLent   string    `json:"date_lent"`
	DueDate    string    `json:"due_date"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func toLoanResponse(l *model.Loan) loanResponse {
	return loanResponse{
		ID:         l.ID,
		BorrowerID: l.BorrowerID,
		Amount:     l.Amount.StringFixed(2),
		Currency:   l.Currency,
		DateLent:   l.DateLent.Format(dateLayout),
		DueDate:    l.DueDate.Format(dateLayout),
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt,
	}
}

// Create は貸付を登録する。
// POST /api/loans
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	input := loan.AddInput{
		BorrowerID: req.BorrowerID,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}
	if req.DateLent != "" {
		d, err := time.Parse(dateLayout, req.DateLent)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationFailedError("貸付日はYYYY-MM-DD形式で指定してください"))
			return
		}
		input.DateLent = &d
	}
	if req.DueDate != "" {
		d, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationFailedError("返済期日はYYYY-MM-DD形式で指定してください"))
			return
		}
		input.DueDate = &d
	}

	l, err := h.service.Add(r.Context(), username, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanResponse(l))
}

// List は貸付一覧を取得する。
// GET /api/loans（?status=activeでACTIVEのみに絞り込み）
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var loans []*model.Loan
	if r.URL.Query().Get("status") == "active" {
		loans, err = h.service.ListActive(r.Context(), username)
	} else {
		loans, err = h.service.ListAll(r.Context(), username)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		resp = append(resp, toLoanResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は貸付を1件取得する。
// GET /api/loans/{id}
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	l, err := h.service.Get(r.Context(), id, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanResponse(l))
}

// Delete は貸付を削除する。
// DELETE /api/loans/{id}
func (h *LoanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id, username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Repay は貸付に返済を適用し、適用後の貸付を返す。
// PUT /api/loans/{id}/repay
func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req repayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	l, err := h.service.Repay(r.Context(), id, username, req.Amount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLoanResponse(l))
}
