package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency は通貨コード未指定時に使用する通貨。
const DefaultCurrency = "USD"

// LoanStatus は貸付の状態を表す。
type LoanStatus string

const (
	// LoanStatusActive は返済が残っている貸付状態。
	LoanStatusActive LoanStatus = "ACTIVE"
	// LoanStatusRepaid は全額返済済みの終端状態。ここから他の状態への遷移はない。
	LoanStatusRepaid LoanStatus = "REPAID"
)

// Loan は1件の貸付を表す。
// Amountは残高（未返済額）であり、返済の適用により減少する。
// OwnerIDは参照先Borrowerの所有者と常に一致しなければならない。
// 空文字のOwnerIDはレガシーデータの移行前状態を表す。
type Loan struct {
	ID           int64
	BorrowerID   int64
	OwnerID      string
	Amount       decimal.Decimal
	Currency     string
	DateLent     time.Time
	DueDate      time.Time
	Status       LoanStatus
	ReminderSent bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ApplyRepayment は返済を残高に適用し、状態遷移を行う。
// 返済額が残高以上の場合は残高を0に切り詰めてREPAIDへ遷移する（レコードは保持する）。
// 返済額が残高未満の場合は残高を正確に減算し、ACTIVEのまま維持する。
// 返済額が正でない場合、または既にREPAIDの場合はエラーを返し、状態は変更しない。
func (l *Loan) ApplyRepayment(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationFailedError("返済額は0より大きい必要があります")
	}
	if l.Status == LoanStatusRepaid {
		return NewLoanAlreadyRepaidError(l.ID)
	}

	if amount.GreaterThanOrEqual(l.Amount) {
		l.Amount = decimal.Zero
		l.Status = LoanStatusRepaid
		return nil
	}

	l.Amount = l.Amount.Sub(amount)
	return nil
}

// DefaultDueDate は貸付日から返済期日のデフォルト値（1ヶ月後）を計算する。
// 作成時に1回だけ計算され、以後再計算されない。
// 翌月に同じ日が存在しない場合は翌月の末日に丸める（1月31日の1ヶ月後は2月末日）。
func DefaultDueDate(dateLent time.Time) time.Time {
	y, m, d := dateLent.Date()
	// time.Dateは日0を前月末日に正規化する
	lastDay := time.Date(y, m+2, 0, 0, 0, 0, 0, dateLent.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, m+1, d,
		dateLent.Hour(), dateLent.Minute(), dateLent.Second(), dateLent.Nanosecond(),
		dateLent.Location())
}
