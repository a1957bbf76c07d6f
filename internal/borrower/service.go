// Package borrower は借り手の登録・参照・削除のビジネスロジックを提供する。
// 全ての操作は認証済みユーザー名でスコープされる。
package borrower

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/kashinote/internal/model"
	"github.com/hitoshi/kashinote/internal/repository"
)

// Service は借り手に関するビジネスロジックを提供する。
type Service struct {
	borrowerRepo repository.BorrowerRepository
	userRepo     repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(borrowerRepo repository.BorrowerRepository, userRepo repository.UserRepository) *Service {
	return &Service{
		borrowerRepo: borrowerRepo,
		userRepo:     userRepo,
	}
}

// AddInput は借り手登録の入力。
type AddInput struct {
	Name  string
	Email string
	Phone string
}

// Add は認証済みユーザーの借り手として新規登録する。
// 所有者は認証コンテキストのユーザー名から解決し、リクエスト本文からは受け取らない。
func (s *Service) Add(ctx context.Context, ownerUsername string, input AddInput) (*model.Borrower, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, model.NewValidationFailedError("借り手の名前は必須です")
	}

	email := strings.TrimSpace(input.Email)
	if email != "" && !looksLikeEmail(email) {
		return nil, model.NewValidationFailedError("メールアドレスの形式が正しくありません")
	}

	owner, err := s.userRepo.FindByUsername(ctx, ownerUsername)
	if err != nil {
		return nil, fmt.Errorf("所有ユーザーの取得に失敗しました: %w", err)
	}
	if owner == nil {
		// 認証済みトークンに対応するユーザーが削除されている場合
		return nil, model.NewUnauthorizedError()
	}

	now := time.Now()
	b := &model.Borrower{
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(input.Phone),
		OwnerID:   owner.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.borrowerRepo.Create(ctx, b); err != nil {
		return nil, err
	}

	slog.Info("borrower registered",
		slog.Int64("borrower_id", b.ID),
		slog.String("owner", ownerUsername),
	)

	return b, nil
}

// List は認証済みユーザーの借り手一覧を返す。
func (s *Service) List(ctx context.Context, ownerUsername string) ([]*model.Borrower, error) {
	return s.borrowerRepo.ListByOwner(ctx, ownerUsername)
}

// Get は認証済みユーザーの借り手を1件取得する。
// 存在しない場合も他ユーザーの所有である場合も同一の未検出エラーを返す。
func (s *Service) Get(ctx context.Context, id int64, ownerUsername string) (*model.Borrower, error) {
	b, err := s.borrowerRepo.FindByIDAndOwner(ctx, id, ownerUsername)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBorrowerNotFoundError(id)
	}
	return b, nil
}

// Delete は借り手とその全貸付を削除する。
func (s *Service) Delete(ctx context.Context, id int64, ownerUsername string) error {
	if err := s.borrowerRepo.DeleteWithLoans(ctx, id, ownerUsername); err != nil {
		return err
	}

	slog.Info("borrower deleted",
		slog.Int64("borrower_id", id),
		slog.String("owner", ownerUsername),
	)
	return nil
}

// looksLikeEmail はメールアドレスの緩い形式チェックを行う。
// 厳密なRFC検証はせず、@とドメイン部の存在のみ確認する。
func looksLikeEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(s, " \t")
}
