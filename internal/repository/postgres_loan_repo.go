package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/kashinote/internal/model"
)

// repaymentMaxRetries は返済トランザクションの競合時の最大リトライ回数。
const repaymentMaxRetries = 3

const loanColumns = `l.id, l.borrower_id, l.owner_id, l.amount, l.currency,
	 l.date_lent, l.due_date, l.status, l.reminder_sent, l.created_at, l.updated_at`

// PostgresLoanRepo はPostgreSQLを使用した貸付リポジトリ。
// 所有者スコープはusersテーブルとのJOINで強制する。
type PostgresLoanRepo struct {
	db *sql.DB
}

// NewPostgresLoanRepo はPostgresLoanRepoを生成する。
func NewPostgresLoanRepo(db *sql.DB) *PostgresLoanRepo {
	return &PostgresLoanRepo{db: db}
}

// Create は貸付を作成し、採番されたIDをloan.IDに設定する。
func (r *PostgresLoanRepo) Create(ctx context.Context, loan *model.Loan) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO loans (borrower_id, owner_id, amount, currency, date_lent, due_date,
		                    status, reminder_sent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		loan.BorrowerID, loan.OwnerID, loan.Amount, loan.Currency, loan.DateLent,
		loan.DueDate, loan.Status, loan.ReminderSent, loan.CreatedAt, loan.UpdatedAt,
	).Scan(&loan.ID)
	if err != nil {
		return fmt.Errorf("貸付の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByIDAndOwner は指定IDかつ指定所有者の貸付を取得する。
// 存在しない場合も所有者が異なる場合もnilを返す。
func (r *PostgresLoanRepo) FindByIDAndOwner(ctx context.Context, id int64, ownerUsername string) (*model.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+`
		 FROM loans l
		 JOIN users u ON u.id = l.owner_id
		 WHERE l.id = $1 AND u.username = $2`,
		id, ownerUsername,
	)

	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("貸付の取得に失敗しました: %w", err)
	}
	return loan, nil
}

// ListByOwner は指定所有者の全貸付を作成日時昇順で返す。
func (r *PostgresLoanRepo) ListByOwner(ctx context.Context, ownerUsername string) ([]*model.Loan, error) {
	return r.listByOwner(ctx, ownerUsername, false)
}

// ListActiveByOwner は指定所有者のACTIVEな貸付を作成日時昇順で返す。
func (r *PostgresLoanRepo) ListActiveByOwner(ctx context.Context, ownerUsername string) ([]*model.Loan, error) {
	return r.listByOwner(ctx, ownerUsername, true)
}

func (r *PostgresLoanRepo) listByOwner(ctx context.Context, ownerUsername string, activeOnly bool) ([]*model.Loan, error) {
	query := `SELECT ` + loanColumns + `
	 FROM loans l
	 JOIN users u ON u.id = l.owner_id
	 WHERE u.username = $1`
	if activeOnly {
		query += ` AND l.status = 'ACTIVE'`
	}
	query += ` ORDER BY l.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, ownerUsername)
	if err != nil {
		return nil, fmt.Errorf("貸付一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var loans []*model.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("貸付行の読み取りに失敗しました: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("貸付一覧の走査に失敗しました: %w", err)
	}
	return loans, nil
}

// DeleteByIDAndOwner は指定IDかつ指定所有者の貸付を削除する。
func (r *PostgresLoanRepo) DeleteByIDAndOwner(ctx context.Context, id int64, ownerUsername string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM loans l
		 USING users u
		 WHERE u.id = l.owner_id AND l.id = $1 AND u.username = $2`,
		id, ownerUsername,
	)
	if err != nil {
		return fmt.Errorf("貸付の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewLoanNotFoundError(id)
	}
	return nil
}

// ApplyRepayment は返済を単一トランザクション内のread-modify-writeで適用する。
// 直列化失敗・デッドロックは上限回数までリトライし、超過時は競合エラーを返す。
func (r *PostgresLoanRepo) ApplyRepayment(ctx context.Context, id int64, ownerUsername string, amount decimal.Decimal) (*model.Loan, error) {
	var lastErr error
	for attempt := 0; attempt < repaymentMaxRetries; attempt++ {
		loan, err := r.applyRepaymentTx(ctx, id, ownerUsername, amount)
		if err == nil {
			return loan, nil
		}
		if !isRetryableTxError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s", model.NewRepaymentConflictError(id), lastErr)
}

// applyRepaymentTx は1回分の返済トランザクションを実行する。
// 対象行をFOR UPDATEでロックし、同一貸付への並行返済を直列化する。
func (r *PostgresLoanRepo) applyRepaymentTx(ctx context.Context, id int64, ownerUsername string, amount decimal.Decimal) (*model.Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+`
		 FROM loans l
		 JOIN users u ON u.id = l.owner_id
		 WHERE l.id = $1 AND u.username = $2
		 FOR UPDATE OF l`,
		id, ownerUsername,
	)

	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, model.NewLoanNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("貸付の取得に失敗しました: %w", err)
	}

	if err := loan.ApplyRepayment(amount); err != nil {
		return nil, err
	}

	loan.UpdatedAt = time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE loans SET amount = $2, status = $3, updated_at = $4 WHERE id = $1`,
		loan.ID, loan.Amount, loan.Status, loan.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("貸付の更新に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("返済のコミットに失敗しました: %w", err)
	}
	return loan, nil
}

// ListDueForReminder は期日が到来しリマインダー未送信のACTIVEな貸付を
// 借り手名付きで返す。
func (r *PostgresLoanRepo) ListDueForReminder(ctx context.Context, asOf time.Time) ([]DueLoan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanColumns+`, b.name
		 FROM loans l
		 JOIN borrowers b ON b.id = l.borrower_id
		 WHERE l.due_date <= $1 AND l.status = 'ACTIVE' AND l.reminder_sent = false
		 ORDER BY l.due_date ASC`,
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("リマインダー対象の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var dueLoans []DueLoan
	for rows.Next() {
		var d DueLoan
		var ownerID sql.NullString
		if err := rows.Scan(&d.ID, &d.BorrowerID, &ownerID, &d.Amount, &d.Currency,
			&d.DateLent, &d.DueDate, &d.Status, &d.ReminderSent, &d.CreatedAt, &d.UpdatedAt,
			&d.BorrowerName); err != nil {
			return nil, fmt.Errorf("リマインダー対象行の読み取りに失敗しました: %w", err)
		}
		d.OwnerID = ownerID.String
		dueLoans = append(dueLoans, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リマインダー対象の走査に失敗しました: %w", err)
	}
	return dueLoans, nil
}

// MarkReminderSent は指定貸付のリマインダー送信済みフラグを立てる。
func (r *PostgresLoanRepo) MarkReminderSent(ctx context.Context, loanID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE loans SET reminder_sent = true, updated_at = now() WHERE id = $1`,
		loanID,
	)
	if err != nil {
		return fmt.Errorf("リマインダーフラグの更新に失敗しました: %w", err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsを共通に扱うためのインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanLoan は貸付1行をモデルに読み取る。
func scanLoan(row rowScanner) (*model.Loan, error) {
	loan := &model.Loan{}
	err := row.Scan(&loan.ID, &loan.BorrowerID, &loan.OwnerID, &loan.Amount, &loan.Currency,
		&loan.DateLent, &loan.DueDate, &loan.Status, &loan.ReminderSent,
		&loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// isRetryableTxError は直列化失敗またはデッドロックかどうかを判定する。
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// 40001: serialization_failure, 40P01: deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// compile-time interface check
var _ LoanRepository = (*PostgresLoanRepo)(nil)
