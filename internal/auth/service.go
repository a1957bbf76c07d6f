package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/kashinote/internal/model"
	"github.com/hitoshi/kashinote/internal/repository"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// MetricsRecorder は認証サービスが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordLoginAttempt(result string)
}

// Service は認証に関するビジネスロジックを提供する。
// サインアップ、ログイン（レート制限込み）、トークン発行を担う。
type Service struct {
	userRepo repository.UserRepository
	codec    *TokenCodec
	limiter  *LoginLimiter
	metrics  MetricsRecorder
}

// NewService はServiceを生成する。
// metricsはnilでもよい（記録なしで動作する）。
func NewService(
	userRepo repository.UserRepository,
	codec *TokenCodec,
	limiter *LoginLimiter,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		userRepo: userRepo,
		codec:    codec,
		limiter:  limiter,
		metrics:  metrics,
	}
}

// Signup は新規ユーザーを登録する。
// ユーザー名が既に使用されている場合は認証情報不正エラーを返す
// （存在有無を区別させないため、ログイン失敗と同じ形のエラーを使う）。
// サインアップにはログインレート制限を適用しない。
func (s *Service) Signup(ctx context.Context, username, password string) (*model.AppUser, error) {
	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの存在確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewInvalidCredentialsError()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.AppUser{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 存在確認と作成の間の競合により一意制約違反が起こりうる
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)

	return user, nil
}

// Login は認証情報を検証し、セッショントークンを発行する。
// レート制限はユーザー名の生の入力値に対して、アカウント存在確認より先に
// 適用される。これにより存在しないユーザー名への列挙攻撃も同様に制限され、
// 制限超過時はストレージへのアクセスが発生しない。
// ユーザー不存在とパスワード不一致は同一のエラーとして返す。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if !s.limiter.Allow(username) {
		s.recordLogin("rate_limited")
		slog.Warn("login rate limit exceeded", slog.String("username", username))
		return "", model.NewRateLimitedError()
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	if user == nil || !VerifyPassword(password, user.PasswordHash) {
		s.recordLogin("failure")
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.codec.Issue(user.Username)
	if err != nil {
		return "", fmt.Errorf("セッショントークンの発行に失敗しました: %w", err)
	}

	s.recordLogin("success")
	slog.Info("user logged in", slog.String("username", username))

	return token, nil
}

// recordLogin はログイン試行の結果をメトリクスに記録する。
func (s *Service) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.RecordLoginAttempt(result)
	}
}
