package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kashinote/internal/metrics"
	"github.com/hitoshi/kashinote/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 借り手・貸付
	BorrowerService BorrowerServiceInterface
	LoanService     LoanServiceInterface

	// メトリクス公開
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery
//	認証済みルートはさらに CSRF → Auth → RateLimit
//
// 認証エンドポイント（/api/auth/*）ではログイン試行のレート制限を
// 認証サービス自身がユーザー名単位で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	borrowerHandler := NewBorrowerHandler(deps.BorrowerService)
	loanHandler := NewLoanHandler(deps.LoanService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// サインアップ・ログインはCSRF検証の対象外（セッション未確立のため）
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.With(middleware.NewAuthMiddleware(deps.TokenVerifier)).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Auth → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.Middleware())

		// 借り手管理
		r.Route("/api/borrowers", func(r chi.Router) {
			r.Post("/", borrowerHandler.Create)
			r.Get("/", borrowerHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", borrowerHandler.Get)
				r.Delete("/", borrowerHandler.Delete)
			})
		})

		// 貸付管理
		r.Route("/api/loans", func(r chi.Router) {
			r.Post("/", loanHandler.Create)
			r.Get("/", loanHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", loanHandler.Get)
				r.Delete("/", loanHandler.Delete)
				r.Put("/repay", loanHandler.Repay)
			})
		})
	})

	return r
}
