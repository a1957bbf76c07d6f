package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func activeLoan(amount string) *Loan {
	return &Loan{
		ID:       1,
		Amount:   decimal.RequireFromString(amount),
		Currency: DefaultCurrency,
		Status:   LoanStatusActive,
	}
}

func TestApplyRepayment_PartialReducesBalanceExactly(t *testing.T) {
	loan := activeLoan("100.10")

	if err := loan.ApplyRepayment(decimal.RequireFromString("0.01")); err != nil {
		t.Fatalf("返済に失敗: %v", err)
	}

	// 浮動小数点誤差なしの正確な減算であること
	if !loan.Amount.Equal(decimal.RequireFromString("100.09")) {
		t.Errorf("残高 = %s、期待値 100.09", loan.Amount)
	}
	if loan.Status != LoanStatusActive {
		t.Errorf("ステータス = %s、期待値 ACTIVE", loan.Status)
	}
}

func TestApplyRepayment_ExactBalanceSettles(t *testing.T) {
	loan := activeLoan("100.00")

	if err := loan.ApplyRepayment(decimal.RequireFromString("100.00")); err != nil {
		t.Fatalf("返済に失敗: %v", err)
	}

	if !loan.Amount.IsZero() {
		t.Errorf("残高 = %s、期待値 0", loan.Amount)
	}
	if loan.Status != LoanStatusRepaid {
		t.Errorf("ステータス = %s、期待値 REPAID", loan.Status)
	}
}

func TestApplyRepayment_OverpaymentClampsToZero(t *testing.T) {
	loan := activeLoan("100.00")

	if err := loan.ApplyRepayment(decimal.RequireFromString("250.00")); err != nil {
		t.Fatalf("返済に失敗: %v", err)
	}

	// 残高を超える返済はマイナスにせず0に丸める
	if !loan.Amount.IsZero() {
		t.Errorf("残高 = %s、期待値 0", loan.Amount)
	}
	if loan.Status != LoanStatusRepaid {
		t.Errorf("ステータス = %s、期待値 REPAID", loan.Status)
	}
}

func TestApplyRepayment_RepaidIsTerminal(t *testing.T) {
	loan := activeLoan("50.00")
	if err := loan.ApplyRepayment(decimal.RequireFromString("50.00")); err != nil {
		t.Fatalf("返済に失敗: %v", err)
	}

	err := loan.ApplyRepayment(decimal.RequireFromString("10.00"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeLoanAlreadyRepaid {
		t.Errorf("エラー = %v、期待値 LOAN_ALREADY_REPAID", err)
	}
	if !loan.Amount.IsZero() {
		t.Errorf("完済後の返済で残高が変化した: %s", loan.Amount)
	}
}

func TestApplyRepayment_RejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-10"} {
		loan := activeLoan("100.00")
		err := loan.ApplyRepayment(decimal.RequireFromString(amount))
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeValidationFailed {
			t.Errorf("返済額 %s: エラー = %v、期待値 VALIDATION_FAILED", amount, err)
		}
		if !loan.Amount.Equal(decimal.RequireFromString("100.00")) {
			t.Errorf("返済額 %s: 残高が変化した: %s", amount, loan.Amount)
		}
	}
}

func TestDefaultDueDate_OneMonthAfterDateLent(t *testing.T) {
	dateLent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := DefaultDueDate(dateLent)
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DefaultDueDate = %v、期待値 %v", got, want)
	}
}

func TestDefaultDueDate_ClampsToEndOfShorterMonth(t *testing.T) {
	tests := []struct {
		name     string
		dateLent time.Time
		want     time.Time
	}{
		{
			name:     "1月31日の1ヶ月後は閏年の2月29日",
			dateLent: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "1月31日の1ヶ月後は平年の2月28日",
			dateLent: time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			want:     time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "3月31日の1ヶ月後は4月30日",
			dateLent: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "12月31日の1ヶ月後は翌年1月31日",
			dateLent: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			want:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "月の途中は丸めずそのまま",
			dateLent: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			want:     time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultDueDate(tt.dateLent)
			if !got.Equal(tt.want) {
				t.Errorf("DefaultDueDate(%v) = %v、期待値 %v", tt.dateLent, got, tt.want)
			}
		})
	}
}
