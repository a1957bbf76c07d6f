package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRun_NoOrphansIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"borrowers", "loans"}).AddRow(0, 0))
	mock.ExpectRollback()

	job := NewReconcileJob(db, discardLogger())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("ジョブの実行に失敗: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("未消化の期待: %v", err)
	}
}

func TestRun_AssignsOrphansToFirstUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"borrowers", "loans"}).AddRow(3, 5))
	mock.ExpectQuery("SELECT id FROM users ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("first-user-uuid"))
	mock.ExpectExec("UPDATE borrowers SET owner_id").
		WithArgs("first-user-uuid").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE loans SET owner_id").
		WithArgs("first-user-uuid").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	job := NewReconcileJob(db, discardLogger())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("ジョブの実行に失敗: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("未消化の期待: %v", err)
	}
}

func TestRun_OrphansWithoutUsersSkips(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"borrowers", "loans"}).AddRow(2, 0))
	mock.ExpectQuery("SELECT id FROM users ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	// ユーザー不在はエラーではなく警告スキップ
	job := NewReconcileJob(db, discardLogger())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("ジョブの実行に失敗: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("未消化の期待: %v", err)
	}
}
