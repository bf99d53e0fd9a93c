package email

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"adminauth-service/internal/domain/auth"
	"adminauth-service/internal/pkg/logger"

	"go.uber.org/zap"
)

// ResetNotifier delivers password/PIN reset links by email.
type ResetNotifier struct {
	mailer  Mailer
	baseURL string
	ttl     time.Duration
	logger  *zap.Logger
}

func NewResetNotifier(mailer Mailer, baseURL string, ttl time.Duration, logger *zap.Logger) *ResetNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetNotifier{mailer: mailer, baseURL: baseURL, ttl: ttl, logger: logger}
}

// ResetLink is the URL the user follows to pick a new secret.
func (n *ResetNotifier) ResetLink(userID int64, token string) (string, error) {
	u, err := url.Parse(n.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse reset base url: %w", err)
	}
	q := u.Query()
	q.Set("uid", strconv.FormatInt(userID, 10))
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (n *ResetNotifier) SendResetToken(ctx context.Context, account *auth.UserAccount, token string) error {
	link, err := n.ResetLink(account.ID, token)
	if err != nil {
		return err
	}

	what := "password"
	if account.AuthMode == auth.ModePin {
		what = "PIN"
	}

	subject := fmt.Sprintf("Reset your %s", what)
	body := fmt.Sprintf(`Hello %s,

We received a request to reset the %s for your account.
Open the link below to choose a new one:

%s

The link expires in %s and can be used once.
If you did not ask for this, you can ignore this email.`,
		account.DisplayName, what, link, n.ttl.Round(time.Minute))

	if err := n.mailer.Send(ctx, account.Email, subject, body); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	n.logger.Info("reset email sent", zap.Int64("user_id", account.ID), logger.Email(account.Email))
	return nil
}
