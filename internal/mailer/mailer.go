// Package mailer はリマインダー通知用のメール送信を提供する。
package mailer

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPConfig はSMTPメーラーの設定。
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled はSMTP送信に必要な設定が揃っているかを返す。
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// SMTPMailer はnet/smtpを使用したMailerの実装。
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTPMailer はSMTPMailerを生成する。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// Send はメールを1通送信する。
// 認証情報が設定されている場合はPLAIN認証を使用する。
func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := net.JoinHostPort(m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	msg := strings.Join([]string{
		"From: " + m.config.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, m.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("メールの送信に失敗しました: %w", err)
	}
	return nil
}

var _ Mailer = (*SMTPMailer)(nil)
