// Package reconcile は所有者未設定のレガシーデータを引き当てる起動時ジョブを提供する。
// 所有者スコープ導入前に作成されたowner_idがNULLの借り手・貸付を、
// 最古のユーザーに一括で割り当てる。
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ReconcileJob は所有者未設定レコードの引き当てジョブ。
// サーバー起動時にリクエスト受付前に1回実行される。
// 冪等: 引き当て対象がなければ何もしない。
type ReconcileJob struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewReconcileJob は新しいReconcileJobを生成する。
func NewReconcileJob(db *sql.DB, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{
		db:     db,
		logger: logger,
	}
}

// Run は所有者未設定の借り手・貸付を単一トランザクションで引き当てる。
// 割り当て先は作成日時が最古のユーザー。対象レコードが存在するのに
// ユーザーが1人もいない場合は警告を出してスキップする（エラーにはしない）。
func (j *ReconcileJob) Run(ctx context.Context) error {
	start := time.Now()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var orphanBorrowers, orphanLoans int64
	err = tx.QueryRowContext(ctx,
		`SELECT
		   (SELECT count(*) FROM borrowers WHERE owner_id IS NULL),
		   (SELECT count(*) FROM loans WHERE owner_id IS NULL)`,
	).Scan(&orphanBorrowers, &orphanLoans)
	if err != nil {
		return fmt.Errorf("所有者未設定レコードの集計に失敗: %w", err)
	}

	if orphanBorrowers == 0 && orphanLoans == 0 {
		j.logger.Info("所有者未設定のレコードはありません")
		return nil
	}

	var firstUserID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users ORDER BY created_at ASC LIMIT 1`,
	).Scan(&firstUserID)
	if err == sql.ErrNoRows {
		j.logger.Warn("所有者未設定のレコードがありますが、割り当て先のユーザーが存在しません",
			slog.Int64("orphan_borrowers", orphanBorrowers),
			slog.Int64("orphan_loans", orphanLoans),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("割り当て先ユーザーの取得に失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE borrowers SET owner_id = $1, updated_at = now() WHERE owner_id IS NULL`,
		firstUserID,
	); err != nil {
		return fmt.Errorf("借り手の所有者引き当てに失敗: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE loans SET owner_id = $1, updated_at = now() WHERE owner_id IS NULL`,
		firstUserID,
	); err != nil {
		return fmt.Errorf("貸付の所有者引き当てに失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("所有者引き当てのコミットに失敗: %w", err)
	}

	j.logger.Info("所有者未設定レコードの引き当てが完了しました",
		slog.String("assigned_to", firstUserID),
		slog.Int64("borrowers", orphanBorrowers),
		slog.Int64("loans", orphanLoans),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
