package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kashinote/internal/model"
)

// PostgresBorrowerRepo はPostgreSQLを使用した借り手リポジトリ。
// 所有者スコープはusersテーブルとのJOINで強制する。owner_idがNULLの
// レガシーレコードはJOINにより自然に除外される。
type PostgresBorrowerRepo struct {
	db *sql.DB
}

// NewPostgresBorrowerRepo はPostgresBorrowerRepoを生成する。
func NewPostgresBorrowerRepo(db *sql.DB) *PostgresBorrowerRepo {
	return &PostgresBorrowerRepo{db: db}
}

// Create は借り手を作成し、採番されたIDをborrower.IDに設定する。
func (r *PostgresBorrowerRepo) Create(ctx context.Context, borrower *model.Borrower) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO borrowers (name, email, phone, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		borrower.Name, borrower.Email, borrower.Phone, borrower.OwnerID,
		borrower.CreatedAt, borrower.UpdatedAt,
	).Scan(&borrower.ID)
	if err != nil {
		return fmt.Errorf("借り手の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByIDAndOwner は指定IDかつ指定所有者の借り手を取得する。
// 存在しない場合も所有者が異なる場合もnilを返す。
func (r *PostgresBorrowerRepo) FindByIDAndOwner(ctx context.Context, id int64, ownerUsername string) (*model.Borrower, error) {
	borrower := &model.Borrower{}
	err := r.db.QueryRowContext(ctx,
		`SELECT b.id, b.name, b.email, b.phone, b.owner_id, b.created_at, b.updated_at
		 FROM borrowers b
		 JOIN users u ON u.id = b.owner_id
		 WHERE b.id = $1 AND u.username = $2`,
		id, ownerUsername,
	).Scan(&borrower.ID, &borrower.Name, &borrower.Email, &borrower.Phone,
		&borrower.OwnerID, &borrower.CreatedAt, &borrower.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("借り手の取得に失敗しました: %w", err)
	}

	return borrower, nil
}

// ListByOwner は指定所有者の借り手一覧を作成日時昇順で返す。
func (r *PostgresBorrowerRepo) ListByOwner(ctx context.Context, ownerUsername string) ([]*model.Borrower, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.email, b.phone, b.owner_id, b.created_at, b.updated_at
		 FROM borrowers b
		 JOIN users u ON u.id = b.owner_id
		 WHERE u.username = $1
		 ORDER BY b.created_at ASC`,
		ownerUsername,
	)
	if err != nil {
		return nil, fmt.Errorf("借り手一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var borrowers []*model.Borrower
	for rows.Next() {
		b := &model.Borrower{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("借り手行の読み取りに失敗しました: %w", err)
		}
		borrowers = append(borrowers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("借り手一覧の走査に失敗しました: %w", err)
	}
	return borrowers, nil
}

// DeleteWithLoans は借り手とその全貸付を単一トランザクションで削除する。
// 貸付→借り手の順の明示的な2段階削除を行う。
func (r *PostgresBorrowerRepo) DeleteWithLoans(ctx context.Context, id int64, ownerUsername string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 所有者スコープで借り手の存在を確認しつつロックする
	var borrowerID int64
	err = tx.QueryRowContext(ctx,
		`SELECT b.id FROM borrowers b
		 JOIN users u ON u.id = b.owner_id
		 WHERE b.id = $1 AND u.username = $2
		 FOR UPDATE OF b`,
		id, ownerUsername,
	).Scan(&borrowerID)
	if err == sql.ErrNoRows {
		return model.NewBorrowerNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("借り手の取得に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM loans WHERE borrower_id = $1`, borrowerID,
	); err != nil {
		return fmt.Errorf("借り手の貸付の削除に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM borrowers WHERE id = $1`, borrowerID,
	); err != nil {
		return fmt.Errorf("借り手の削除に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("借り手削除のコミットに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BorrowerRepository = (*PostgresBorrowerRepo)(nil)
