// Package notify sends issue notifications by email.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/secissues/secissues-go/internal/config"
	"github.com/secissues/secissues-go/internal/model"
	"gopkg.in/gomail.v2"
)

// EmailNotifier mails the issue owner when a new issue is filed.
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *slog.Logger
	send   func(*gomail.Message) error
}

// NewEmailNotifier returns nil when SMTP is not configured so callers can skip
// notifications entirely.
func NewEmailNotifier(cfg config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	if cfg.Host == "" || cfg.From == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
		send:   func(m *gomail.Message) error { return d.DialAndSend(m) },
	}
}

// IssueCreated sends the "issue created" mail. The SMTP exchange is abandoned
// if ctx ends first.
func (n *EmailNotifier) IssueCreated(ctx context.Context, post model.Post) error {
	if strings.TrimSpace(post.Email) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", post.Email)
	m.SetHeader("Subject", fmt.Sprintf("[SecIssues] Issue #%d created: %s", post.ID, post.Title))
	m.SetBody("text/html", issueCreatedBody(post))

	done := make(chan error, 1)
	go func() { done <- n.send(m) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
	}

	n.logger.Info("issue notification sent", slog.String("to", post.Email), slog.Int64("post_id", post.ID))
	return nil
}

func issueCreatedBody(post model.Post) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 560px; margin: 0 auto; padding: 16px;">
    <h2>New security issue #%d</h2>
    <p><strong>Type:</strong> %s</p>
    <p><strong>Title:</strong> %s</p>
    <p>%s</p>
    <p style="font-size: 12px; color: #6b7280;">Created by %s</p>
  </div>
</body>
</html>`,
		post.ID,
		html.EscapeString(string(post.Type)),
		html.EscapeString(post.Title),
		html.EscapeString(post.Description),
		html.EscapeString(post.Email),
	)
}
