package mailer

import "testing"

func TestSMTPConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
		want bool
	}{
		{
			name: "ホストと送信元が揃っていれば有効",
			cfg:  SMTPConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"},
			want: true,
		},
		{
			name: "ホストが空なら無効",
			cfg:  SMTPConfig{From: "noreply@example.com"},
			want: false,
		},
		{
			name: "送信元が空なら無効",
			cfg:  SMTPConfig{Host: "smtp.example.com"},
			want: false,
		},
		{
			name: "未設定なら無効",
			cfg:  SMTPConfig{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
