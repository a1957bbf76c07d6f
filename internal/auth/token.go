package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの署名不一致・形式不正・期限切れを表す。
// 検証失敗の理由は呼び出し側に区別させない。
var ErrInvalidToken = errors.New("invalid session token")

// TokenCodec はユーザー名に紐付く署名付きセッショントークンを発行・検証する。
// 署名鍵はプロセス全体の秘密情報として起動時に1回読み込まれ、
// 以後は読み取り専用のため書き込み競合は発生しない。
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec はTokenCodecを生成する。
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue は指定ユーザー名の署名付きトークンを発行する。
// 有効期限は発行時刻 + TTLの絶対時刻となる。
func (c *TokenCodec) Issue(username string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、ユーザー名を返す。
// 署名不一致・形式不正・期限切れのいずれもErrInvalidTokenを返す。
// 全リクエストで評価されるため、敵対的な入力に対してもパニックせず
// 「認証なし」として静かに失敗する。
func (c *TokenCodec) Verify(tokenString string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))

	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
