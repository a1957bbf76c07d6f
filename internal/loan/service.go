// Package loan は貸付の登録・参照・削除・返済のビジネスロジックを提供する。
// 全ての操作は認証済みユーザー名でスコープされる。
package loan

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kashinote/internal/model"
	"github.com/hitoshi/kashinote/internal/repository"
)

// MetricsRecorder は貸付サービスが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordRepayment()
	RecordLoanSettled()
	RecordRepaymentLatency(duration time.Duration)
}

// Service は貸付に関するビジネスロジックを提供する。
type Service struct {
	loanRepo     repository.LoanRepository
	borrowerRepo repository.BorrowerRepository
	metrics      MetricsRecorder
}

// NewService はServiceを生成する。
// metricsはnilでもよい（記録なしで動作する）。
func NewService(
	loanRepo repository.LoanRepository,
	borrowerRepo repository.BorrowerRepository,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		loanRepo:     loanRepo,
		borrowerRepo: borrowerRepo,
		metrics:      metrics,
	}
}

// AddInput は貸付登録の入力。
type AddInput struct {
	BorrowerID int64
	Amount     decimal.Decimal
	Currency   string     // 省略時はUSD
	DateLent   *time.Time // 省略時は現在日
	DueDate    *time.Time // 省略時は貸付日の1ヶ月後
}

// Add は認証済みユーザーの貸付として新規登録する。
// 借り手は所有者スコープで再取得し、貸付の所有者は借り手の所有者を引き継ぐ。
// 他ユーザーの借り手IDを指定した場合は借り手未検出エラーになる。
func (s *Service) Add(ctx context.Context, ownerUsername string, input AddInput) (*model.Loan, error) {
	if !input.Amount.IsPositive() {
		return nil, model.NewValidationFailedError("貸付額は0より大きい必要があります")
	}
	if !hasCentPrecision(input.Amount) {
		return nil, model.NewValidationFailedError("貸付額は小数点以下2桁までで指定してください")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = model.DefaultCurrency
	}
	if !isCurrencyCode(currency) {
		return nil, model.NewValidationFailedError("通貨コードは3文字のアルファベットで指定してください")
	}

	b, err := s.borrowerRepo.FindByIDAndOwner(ctx, input.BorrowerID, ownerUsername)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBorrowerNotFoundError(input.BorrowerID)
	}

	dateLent := time.Now()
	if input.DateLent != nil {
		dateLent = *input.DateLent
	}
	dueDate := model.DefaultDueDate(dateLent)
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}
	if dueDate.Before(dateLent) {
		return nil, model.NewValidationFailedError("返済期日は貸付日より後である必要があります")
	}

	now := time.Now()
	l := &model.Loan{
		BorrowerID: b.ID,
		OwnerID:    b.OwnerID,
		Amount:     input.Amount,
		Currency:   currency,
		DateLent:   dateLent,
		DueDate:    dueDate,
		Status:     model.LoanStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.loanRepo.Create(ctx, l); err != nil {
		return nil, err
	}

	slog.Info("loan registered",
		slog.Int64("loan_id", l.ID),
		slog.Int64("borrower_id", b.ID),
		slog.String("amount", l.Amount.String()),
		slog.String("currency", l.Currency),
		slog.String("owner", ownerUsername),
	)

	return l, nil
}

// ListAll は認証済みユーザーの全貸付を返す。
func (s *Service) ListAll(ctx context.Context, ownerUsername string) ([]*model.Loan, error) {
	return s.loanRepo.ListByOwner(ctx, ownerUsername)
}

// ListActive は認証済みユーザーのACTIVEな貸付のみを返す。
func (s *Service) ListActive(ctx context.Context, ownerUsername string) ([]*model.Loan, error) {
	return s.loanRepo.ListActiveByOwner(ctx, ownerUsername)
}

// Get は認証済みユーザーの貸付を1件取得する。
// 存在しない場合も他ユーザーの所有である場合も同一の未検出エラーを返す。
func (s *Service) Get(ctx context.Context, id int64, ownerUsername string) (*model.Loan, error) {
	l, err := s.loanRepo.FindByIDAndOwner(ctx, id, ownerUsername)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, model.NewLoanNotFoundError(id)
	}
	return l, nil
}

// Delete は認証済みユーザーの貸付を削除する。
func (s *Service) Delete(ctx context.Context, id int64, ownerUsername string) error {
	if err := s.loanRepo.DeleteByIDAndOwner(ctx, id, ownerUsername); err != nil {
		return err
	}

	slog.Info("loan deleted",
		slog.Int64("loan_id", id),
		slog.String("owner", ownerUsername),
	)
	return nil
}

// Repay は貸付に返済を適用する。
// 残高の減算と状態遷移はリポジトリのトランザクション内で原子的に行われる。
// 残高以上の返済は残高0・完済扱いとなり、完済後の貸付は据え置かれる。
func (s *Service) Repay(ctx context.Context, id int64, ownerUsername string, amount decimal.Decimal) (*model.Loan, error) {
	if !amount.IsPositive() {
		return nil, model.NewValidationFailedError("返済額は0より大きい必要があります")
	}
	if !hasCentPrecision(amount) {
		return nil, model.NewValidationFailedError("返済額は小数点以下2桁までで指定してください")
	}

	start := time.Now()
	l, err := s.loanRepo.ApplyRepayment(ctx, id, ownerUsername, amount)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRepayment()
		s.metrics.RecordRepaymentLatency(time.Since(start))
		if l.Status == model.LoanStatusRepaid {
			s.metrics.RecordLoanSettled()
		}
	}

	slog.Info("repayment applied",
		slog.Int64("loan_id", l.ID),
		slog.String("amount", amount.String()),
		slog.String("remaining", l.Amount.String()),
		slog.String("status", string(l.Status)),
		slog.String("owner", ownerUsername),
	)

	return l, nil
}

// hasCentPrecision は金額が小数点以下2桁以内かを判定する。
// DBのNUMERIC(14,2)カラムはそれ以上の桁を丸めるため、
// レスポンスと永続化された値がずれないよう事前に弾く。
func hasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// isCurrencyCode は3文字の英字通貨コードかどうかを判定する。
func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) || r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
