package utils

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lms/models"
	courseModels "lms/models/course"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gorm.io/gorm"
)

// MailSender delivers a composed message. *sendgrid.Client satisfies it.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// CertificateMailer emails learners when a certificate is issued.
type CertificateMailer struct {
	db            *gorm.DB
	sender        MailSender
	from          *mail.Email
	verifyBaseURL string
}

// NewCertificateMailer returns nil when no SendGrid key is configured, which
// disables notifications.
func NewCertificateMailer(db *gorm.DB, apiKey, fromAddress, verifyBaseURL string) *CertificateMailer {
	if apiKey == "" {
		log.Println("[CERTIFICATE] SENDGRID_API_KEY not set, certificate emails disabled")
		return nil
	}
	return NewCertificateMailerWithSender(db, sendgrid.NewSendClient(apiKey), fromAddress, verifyBaseURL)
}

func NewCertificateMailerWithSender(db *gorm.DB, sender MailSender, fromAddress, verifyBaseURL string) *CertificateMailer {
	return &CertificateMailer{
		db:            db,
		sender:        sender,
		from:          mail.NewEmail("Learning Center", fromAddress),
		verifyBaseURL: verifyBaseURL,
	}
}

// VerifyURL is the public link printed in the email.
func (m *CertificateMailer) VerifyURL(code string) string {
	return strings.TrimRight(m.verifyBaseURL, "/") + "/" + code
}

// CertificateIssued sends the certificate email to the recipient.
func (m *CertificateMailer) CertificateIssued(ctx context.Context, cert *courseModels.Certificate) error {
	if m == nil {
		return nil
	}
	var user models.User
	if err := m.db.WithContext(ctx).Select("id", "name", "email").First(&user, cert.UserID).Error; err != nil {
		return fmt.Errorf("load recipient %d: %w", cert.UserID, err)
	}
	if user.Email == "" {
		return fmt.Errorf("recipient %d has no email", cert.UserID)
	}

	verifyURL := m.VerifyURL(cert.VerificationCode)
	subject := fmt.Sprintf("Your certificate for %s", cert.EnrollableTitle)
	plain := fmt.Sprintf("Dear %s,\n\nCongratulations on completing %s.\nCertificate number: %s\nVerify it at %s\n",
		cert.RecipientName, cert.EnrollableTitle, cert.CertificateNumber, verifyURL)
	html := getEmailTemplate("Certificate of Completion", fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Congratulations on completing <strong>%s</strong>.</p>
		<div class="info-box">Certificate number: <strong>%s</strong></div>
		<a class="btn" href="%s">Verify certificate</a>`,
		cert.RecipientName, cert.EnrollableTitle, cert.CertificateNumber, verifyURL))

	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(user.Name, user.Email), plain, html)
	resp, err := m.sender.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send certificate email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send certificate email: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}

	log.Printf("[CERTIFICATE] email sent for %s to user %d", cert.CertificateNumber, cert.UserID)
	return nil
}

func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #1F3A5F; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #1F3A5F; line-height: 1.6; }
			.btn { display: inline-block; padding: 12px 24px; background-color: #2E7D32; color: #FFFFFF; text-decoration: none; border-radius: 4px; font-weight: bold; margin-top: 20px; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #2E7D32; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>LEARNING CENTER</h1></div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
		</div>
	</body>
	</html>
	`, title, bodyContent)
}
