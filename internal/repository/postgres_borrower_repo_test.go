package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/kashinote/internal/model"
)

func TestFindByIDAndOwner_OtherOwnerReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	// 他ユーザー所有の借り手はJOINで除外される
	mock.ExpectQuery("SELECT (.+) FROM borrowers b(.+)JOIN users u").
		WithArgs(int64(5), "mallory").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "phone", "owner_id", "created_at", "updated_at",
		}))

	repo := NewPostgresBorrowerRepo(db)
	borrower, err := repo.FindByIDAndOwner(context.Background(), 5, "mallory")
	if err != nil {
		t.Fatalf("取得に失敗: %v", err)
	}
	if borrower != nil {
		t.Errorf("他ユーザー所有の借り手が返された: %+v", borrower)
	}
}

func TestDeleteWithLoans_DeletesLoansFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM borrowers b(.+)FOR UPDATE OF b").
		WithArgs(int64(5), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec("DELETE FROM loans WHERE borrower_id").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM borrowers WHERE id").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewPostgresBorrowerRepo(db)
	if err := repo.DeleteWithLoans(context.Background(), 5, "alice"); err != nil {
		t.Fatalf("削除に失敗: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("未消化の期待: %v", err)
	}
}

func TestDeleteWithLoans_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmockの初期化に失敗: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM borrowers b(.+)FOR UPDATE OF b").
		WithArgs(int64(99), "alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	repo := NewPostgresBorrowerRepo(db)
	err = repo.DeleteWithLoans(context.Background(), 99, "alice")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBorrowerNotFound {
		t.Errorf("エラー = %v、期待値 BORROWER_NOT_FOUND", err)
	}
}
