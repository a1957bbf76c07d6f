package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, loan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeBorrowerNotFound   = "BORROWER_NOT_FOUND"
	ErrCodeLoanNotFound       = "LOAN_NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeLoanAlreadyRepaid  = "LOAN_ALREADY_REPAID"
	ErrCodeRepaymentConflict  = "REPAYMENT_CONFLICT"
)

// NewInvalidCredentialsError は認証情報不正エラーを生成する。
// ユーザー不存在とパスワード不一致を呼び出し側が区別できないよう、
// どちらの場合も同一のエラーを返す。サインアップ時のユーザー名重複にも使用する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewRateLimitedError はログイン試行回数超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "ログイン試行回数が上限に達しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
// トークンの欠落・不正・期限切れのいずれでも同一のレスポンスとなる。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewBorrowerNotFoundError は借り手未検出エラーを生成する。
// レコードが存在しない場合と他ユーザーの所有である場合で同一のレスポンスを返す。
func NewBorrowerNotFoundError(borrowerID int64) *APIError {
	return &APIError{
		Code:     ErrCodeBorrowerNotFound,
		Message:  fmt.Sprintf("指定された借り手が見つかりません: %d", borrowerID),
		Category: "loan",
		Action:   "借り手IDを確認してください。",
	}
}

// NewLoanNotFoundError は貸付未検出エラーを生成する。
// レコードが存在しない場合と他ユーザーの所有である場合で同一のレスポンスを返す。
func NewLoanNotFoundError(loanID int64) *APIError {
	return &APIError{
		Code:     ErrCodeLoanNotFound,
		Message:  fmt.Sprintf("指定された貸付が見つかりません: %d", loanID),
		Category: "loan",
		Action:   "貸付IDを確認してください。",
	}
}

// NewValidationFailedError は業務入力の検証エラーを生成する。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewLoanAlreadyRepaidError は返済済み貸付への返済エラーを生成する。
func NewLoanAlreadyRepaidError(loanID int64) *APIError {
	return &APIError{
		Code:     ErrCodeLoanAlreadyRepaid,
		Message:  fmt.Sprintf("この貸付は既に全額返済済みです: %d", loanID),
		Category: "loan",
		Action:   "貸付の状態を確認してください。",
	}
}

// NewRepaymentConflictError は返済トランザクションの競合エラーを生成する。
// 内部リトライの上限に達した場合にのみ呼び出し側に到達する。
func NewRepaymentConflictError(loanID int64) *APIError {
	return &APIError{
		Code:     ErrCodeRepaymentConflict,
		Message:  fmt.Sprintf("返済処理が他のリクエストと競合しました: %d", loanID),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
