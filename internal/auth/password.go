// Package auth は認証情報の管理、セッショントークンの発行・検証、
// ログイン試行のレート制限を提供する。
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword は平文パスワードをbcryptでハッシュ化する。
// ソルト込みの一方向ハッシュであり、復元は不可能。
// DefaultCostのため1回の呼び出しに数十ミリ秒かかる。
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword は平文パスワードとハッシュを照合する。
// bcrypt内部の定数時間比較を使用する。
// ハッシュが不正な形式であってもパニックやエラーにはせず、falseを返す。
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
