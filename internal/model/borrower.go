package model

import "time"

// Borrower はお金を貸した相手を表す。
// OwnerIDは所有ユーザーのIDで、作成後は変更不可。
// 空文字はレガシーデータの移行前状態（所有者なし）を表す一時的な状態であり、
// 起動時のレガシーデータ再割り当てで解消される。
type Borrower struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
