// Package model はドメインモデルを定義する。
package model

import "time"

// AppUser はサービス利用ユーザー（テナント）を表す。
// ユーザー名は一意であり、パスワードはbcryptハッシュとして保持する。
// BorrowerとLoanの所有権ツリーのルートとなる。
type AppUser struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
