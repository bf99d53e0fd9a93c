package logger

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger: JSON production config in production,
// colored development config everywhere else.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

var (
	emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)
	phoneRegex = regexp.MustCompile(`^(\+?\d{1,3})(\d{4,})(\d{4})$`)
)

// MaskEmail keeps the first three characters and the domain.
// john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	if m := emailRegex.FindStringSubmatch(email); len(m) == 3 {
		return m[1] + "***" + m[2]
	}
	if _, domain, ok := strings.Cut(email, "@"); ok {
		return "***@" + domain
	}
	return "***"
}

// MaskPhone keeps the country prefix and the last four digits.
// +254712345678 -> +254***5678
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}

	if m := phoneRegex.FindStringSubmatch(phone); len(m) == 4 {
		return m[1] + "***" + m[3]
	}
	if len(phone) > 4 {
		return "***" + phone[len(phone)-4:]
	}
	return "***"
}

// Email is a zap field with the address masked.
func Email(email string) zap.Field {
	return zap.String("email", MaskEmail(email))
}
