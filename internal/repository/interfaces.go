// Package repository はデータ永続化のインターフェースを定義する。
//
// BorrowerとLoanの全ての読み書きは認証済みユーザー名でスコープされる。
// 所有者が一致しないレコードは「存在しない」として扱い、
// 「存在するが他人の所有」という情報を呼び出し側に漏らさない。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kashinote/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// ExistsByUsername は指定ユーザー名のユーザーが存在するかを返す。
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.AppUser, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.AppUser) error
}

// BorrowerRepository は借り手データの永続化インターフェース。
// 全ての操作は所有ユーザー名でスコープされる。
type BorrowerRepository interface {
	// Create は借り手を作成し、採番されたIDをborrower.IDに設定する。
	Create(ctx context.Context, borrower *model.Borrower) error

	// FindByIDAndOwner は指定IDかつ指定所有者の借り手を取得する。
	// 存在しない場合も所有者が異なる場合もnilを返す。
	FindByIDAndOwner(ctx context.Context, id int64, ownerUsername string) (*model.Borrower, error)

	// ListByOwner は指定所有者の借り手一覧を作成日時昇順で返す。
	ListByOwner(ctx context.Context, ownerUsername string) ([]*model.Borrower, error)

	// DeleteWithLoans は借り手とその全貸付を単一トランザクションで削除する。
	// 暗黙のカスケードに頼らず、貸付→借り手の順で明示的に削除する。
	// 対象が存在しないか所有者が異なる場合は借り手未検出エラーを返す。
	DeleteWithLoans(ctx context.Context, id int64, ownerUsername string) error
}

// DueLoan はリマインダー対象の貸付と借り手名を結合した構造体。
type DueLoan struct {
	model.Loan
	BorrowerName string
}

// LoanRepository は貸付データの永続化インターフェース。
// リマインダー用の2操作を除き、全ての操作は所有ユーザー名でスコープされる。
type LoanRepository interface {
	// Create は貸付を作成し、採番されたIDをloan.IDに設定する。
	Create(ctx context.Context, loan *model.Loan) error

	// FindByIDAndOwner は指定IDかつ指定所有者の貸付を取得する。
	// 存在しない場合も所有者が異なる場合もnilを返す。
	FindByIDAndOwner(ctx context.Context, id int64, ownerUsername string) (*model.Loan, error)

	// ListByOwner は指定所有者の全貸付を作成日時昇順で返す。
	ListByOwner(ctx context.Context, ownerUsername string) ([]*model.Loan, error)

	// ListActiveByOwner は指定所有者のACTIVEな貸付を作成日時昇順で返す。
	ListActiveByOwner(ctx context.Context, ownerUsername string) ([]*model.Loan, error)

	// DeleteByIDAndOwner は指定IDかつ指定所有者の貸付を削除する。
	// 対象が存在しないか所有者が異なる場合は貸付未検出エラーを返す。
	DeleteByIDAndOwner(ctx context.Context, id int64, ownerUsername string) error

	// ApplyRepayment は返済を単一トランザクション内のread-modify-writeで適用する。
	// 対象行をFOR UPDATEでロックし、残高の更新と状態遷移を原子的に行う。
	// トランザクション競合時は内部で上限回数までリトライする。
	// 適用後の貸付を返す。
	ApplyRepayment(ctx context.Context, id int64, ownerUsername string, amount decimal.Decimal) (*model.Loan, error)

	// ListDueForReminder は期日が到来しリマインダー未送信のACTIVEな貸付を
	// 借り手名付きで返す。システムジョブ用のため所有者スコープは適用しない。
	ListDueForReminder(ctx context.Context, asOf time.Time) ([]DueLoan, error)

	// MarkReminderSent は指定貸付のリマインダー送信済みフラグを立てる。
	MarkReminderSent(ctx context.Context, loanID int64) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
