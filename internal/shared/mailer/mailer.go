// Package mailer 封装 Resend 事务邮件发送
//
// 发送失败只记录日志，不向调用方传播：注册/重置流程不因邮件服务故障而失败。
// 每次发送带独立超时，避免邮件服务缓慢拖垮请求。
package mailer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/resend/resend-go/v2"

	"grocery-auth/internal/config"
)

// 邮件发送计数器，按邮件类型和发送结果分类
var emailSendTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "grocery_auth",
		Subsystem: "mailer",
		Name:      "email_send_total",
		Help:      "Transactional email sends by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

// Service Resend 邮件发送服务
type Service struct {
	client      *resend.Client
	from        string
	frontendURL string
	timeout     time.Duration
}

// NewService 创建邮件发送服务
// apiKey 为空时进入开发模式：邮件内容打印到日志而不实际发送
func NewService(cfg config.EmailConfig, frontendURL string) *Service {
	var client *resend.Client
	if cfg.APIKey != "" {
		client = resend.NewClient(cfg.APIKey)
	} else {
		log.Printf("[mailer] RESEND_API_KEY not set, emails will be logged instead of sent")
	}
	return &Service{
		client:      client,
		from:        cfg.From,
		frontendURL: frontendURL,
		timeout:     cfg.SendTimeout,
	}
}

// SendVerificationEmail 发送邮箱验证邮件（含验证链接）
func (s *Service) SendVerificationEmail(ctx context.Context, to, name, code string) {
	link := fmt.Sprintf("%s/verify-email?code=%s", s.frontendURL, code)
	subject := "Verify your email"
	html := fmt.Sprintf(`
        <html>
        <body>
            <h1>Welcome, %s!</h1>
            <p>Thanks for registering. Please click the link below to verify your email address:</p>
            <p><a href="%s">Verify my email</a></p>
            <p>This link is valid for 24 hours.</p>
            <p>If you did not create this account, you can ignore this email.</p>
        </body>
        </html>
    `, name, link)

	s.send(ctx, "verification", to, subject, html)
}

// SendResetOTPEmail 发送密码重置 OTP 邮件
func (s *Service) SendResetOTPEmail(ctx context.Context, to, name, otp string) {
	subject := "Password reset code"
	html := fmt.Sprintf(`
        <html>
        <body>
            <h1>Password reset</h1>
            <p>Hi %s,</p>
            <p>Your one-time code for resetting your password is:</p>
            <h2>%s</h2>
            <p>This code expires in 10 minutes.</p>
            <p>If you did not request a password reset, you can ignore this email.</p>
        </body>
        </html>
    `, name, otp)

	s.send(ctx, "reset_otp", to, subject, html)
}

// send 发送邮件，失败记录日志后吞掉
func (s *Service) send(ctx context.Context, kind, to, subject, html string) {
	if s.client == nil {
		log.Printf("[mailer] (dev) to=%s subject=%q\n%s", to, subject, html)
		emailSendTotal.WithLabelValues(kind, "dev_logged").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		log.Printf("[mailer] send to %s failed: %v", to, err)
		emailSendTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	emailSendTotal.WithLabelValues(kind, "sent").Inc()
}
