package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kashinote/internal/borrower"
	"github.com/hitoshi/kashinote/internal/middleware"
	"github.com/hitoshi/kashinote/internal/model"
)

// BorrowerServiceInterface は借り手ハンドラーが必要とするサービスインターフェース。
type BorrowerServiceInterface interface {
	Add(ctx context.Context, ownerUsername string, input borrower.AddInput) (*model.Borrower, error)
	List(ctx context.Context, ownerUsername string) ([]*model.Borrower, error)
	Get(ctx context.Context, id int64, ownerUsername string) (*model.Borrower, error)
	Delete(ctx context.Context, id int64, ownerUsername string) error
}

// BorrowerHandler は借り手管理のHTTPハンドラー。
type BorrowerHandler struct {
	service BorrowerServiceInterface
}

// NewBorrowerHandler はBorrowerHandlerを生成する。
func NewBorrowerHandler(service BorrowerServiceInterface) *BorrowerHandler {
	return &BorrowerHandler{
		service: service,
	}
}

// borrowerRequest は借り手登録リクエストのボディ。
type borrowerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// borrowerResponse は借り手情報のAPIレスポンス。
type borrowerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toBorrowerResponse(b *model.Borrower) borrowerResponse {
	return borrowerResponse{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Phone:     b.Phone,
		CreatedAt: b.CreatedAt,
	}
}

// Create は借り手を登録する。
// POST /api/borrowers
func (h *BorrowerHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req borrowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	b, err := h.service.Add(r.Context(), username, borrower.AddInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBorrowerResponse(b))
}

// List は借り手一覧を取得する。
// GET /api/borrowers
func (h *BorrowerHandler) List(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	borrowers, err := h.service.List(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]borrowerResponse, 0, len(borrowers))
	for _, b := range borrowers {
		resp = append(resp, toBorrowerResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は借り手を1件取得する。
// GET /api/borrowers/{id}
func (h *BorrowerHandler) Get(w http.ResponseWriter, r *http.Request) {
	username, err := middleware.UsernameFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), id, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBorrowerResponse(b))
}

// Delete は借り手とその全貸付を削除する。
// DELETE /api/borrowers/{id}
func (h *BorrowerHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// parseIDParam はURLパスの{id}パラメータを解析する。
// 数値でない場合は400を書き込み、falseを返す。
func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationFailedError("IDは正の整数で指定してください"))
		return 0, false
	}
	return id, true
}
