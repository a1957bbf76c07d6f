package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiterConfig はログイン試行レート制限の設定を保持する。
type LoginLimiterConfig struct {
	Capacity        int           // バケット容量（バーストサイズ）
	Window          time.Duration // 容量分のトークンが補充される時間窓
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultLoginLimiterConfig はデフォルトのログインレート制限設定を返す。
// 要件: ユーザー名あたり5回/分。トークンは離散的なバーストではなく
// 連続的に補充される（greedy refill）。
func DefaultLoginLimiterConfig() LoginLimiterConfig {
	return LoginLimiterConfig{
		Capacity:        5,
		Window:          time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// loginBucket はユーザー名ごとのリミッターとアクセス時刻を保持する。
type loginBucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginLimiter はユーザー名ごとのログイン試行レート制限を管理する。
// バケットは初回試行時に遅延生成され、バケットマップはプロセス全体で
// 共有される可変状態のためミューテックスで保護する。
// クライアント入力の生のユーザー名をキーとするため、存在しないユーザー名に
// 対する列挙攻撃も同様に制限される。
type LoginLimiter struct {
	config LoginLimiterConfig

	mu      sync.RWMutex
	buckets map[string]*loginBucket

	stopCh chan struct{}
}

// NewLoginLimiter は新しいLoginLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewLoginLimiter(config LoginLimiterConfig) *LoginLimiter {
	l := &LoginLimiter{
		config:  config,
		buckets: make(map[string]*loginBucket),
		stopCh:  make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (l *LoginLimiter) Stop() {
	close(l.stopCh)
}

// Allow は指定ユーザー名のログイン試行を1回分消費する。
// トークンが残っていない場合はfalseを返す。
// パスワードが正しいかどうかに関係なく、試行自体がトークンを消費する。
func (l *LoginLimiter) Allow(username string) bool {
	return l.getOrCreateBucket(username).Allow()
}

// BucketCount は現在管理されているバケットのエントリ数を返す。
// テストおよびメトリクス用。
func (l *LoginLimiter) BucketCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// getOrCreateBucket はユーザー名のバケットを取得または作成する。
// 同一ユーザー名への並行した初回試行が満容量のバケットを
// 2つ作らないよう、書き込みロック下で再確認する。
func (l *LoginLimiter) getOrCreateBucket(username string) *rate.Limiter {
	l.mu.RLock()
	b, exists := l.buckets[username]
	l.mu.RUnlock()

	if exists {
		l.mu.Lock()
		b.lastAccess = time.Now()
		l.mu.Unlock()
		return b.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// ダブルチェック
	if b, exists := l.buckets[username]; exists {
		b.lastAccess = time.Now()
		return b.limiter
	}

	refill := rate.Limit(float64(l.config.Capacity) / l.config.Window.Seconds())
	limiter := rate.NewLimiter(refill, l.config.Capacity)
	l.buckets[username] = &loginBucket{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (l *LoginLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
// 放置するとバケットマップはユーザー名の数だけ無限に成長するため、
// 満タンまで補充済みの古いバケットを回収する。
func (l *LoginLimiter) cleanup() {
	ttl := l.config.CleanupInterval * 2

	now := time.Now()

	l.mu.Lock()
	for username, b := range l.buckets {
		if now.Sub(b.lastAccess) > ttl {
			delete(l.buckets, username)
		}
	}
	l.mu.Unlock()
}
