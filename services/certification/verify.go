package certification

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"lms/apperr"
	courseModels "lms/models/course"

	"gorm.io/gorm"
)

// Verification is what the public verification endpoint returns.
type Verification struct {
	Valid             bool       `json:"valid"`
	Status            string     `json:"status,omitempty"`
	CertificateNumber string     `json:"certificate_number,omitempty"`
	RecipientName     string     `json:"recipient_name,omitempty"`
	EnrollableType    string     `json:"enrollable_type,omitempty"`
	EnrollableTitle   string     `json:"enrollable_title,omitempty"`
	IssueDate         *time.Time `json:"issue_date,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	FinalScore        *float64   `json:"final_score,omitempty"`
	RevokedReason     string     `json:"revoked_reason,omitempty"`
	VerifiedCount     int64      `json:"verified_count,omitempty"`
}

// StatusAt derives a certificate's status at t. Revocation wins over expiry;
// the expiry date is compared directly so a stale stored status never
// reports an expired certificate as active.
func StatusAt(cert *courseModels.Certificate, t time.Time) string {
	if cert.Status == courseModels.CertificateRevoked || cert.RevokedAt != nil {
		return courseModels.CertificateRevoked
	}
	if cert.ExpiryDate != nil && !t.Before(*cert.ExpiryDate) {
		return courseModels.CertificateExpired
	}
	return courseModels.CertificateActive
}

// Verify resolves a verification code. Unknown codes are not an error: the
// result is simply not valid. Every successful lookup is counted.
func (e *Engine) Verify(ctx context.Context, code string) (*Verification, error) {
	code = NormalizeCode(code)
	if code == "" {
		return &Verification{Valid: false}, nil
	}

	var cert courseModels.Certificate
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&courseModels.Certificate{}).
			Where("verification_code = ?", code).
			Updates(map[string]interface{}{
				"verified_count":   gorm.Expr("verified_count + ?", 1),
				"last_verified_at": e.now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("verification_code = ?", code).First(&cert).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Verification{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	issued := cert.IssueDate
	return &Verification{
		Valid:             true,
		Status:            StatusAt(&cert, e.now()),
		CertificateNumber: cert.CertificateNumber,
		RecipientName:     cert.RecipientName,
		EnrollableType:    cert.EnrollableType,
		EnrollableTitle:   cert.EnrollableTitle,
		IssueDate:         &issued,
		ExpiryDate:        cert.ExpiryDate,
		FinalScore:        cert.FinalScore,
		RevokedReason:     cert.RevokedReason,
		VerifiedCount:     cert.VerifiedCount,
	}, nil
}

// Revoke marks a certificate revoked. The certificate keeps the learner's
// slot, so no later evaluation issues a replacement.
func (e *Engine) Revoke(ctx context.Context, certificateID uint, reason string) (*courseModels.Certificate, error) {
	const op = "certification.Revoke"

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation(op, "a revocation reason is required")
	}

	var cert courseModels.Certificate
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cert, certificateID).Error; err != nil {
			return err
		}
		if cert.Status == courseModels.CertificateRevoked {
			return apperr.InvalidState(op, "certificate is already revoked")
		}

		revokedAt := e.now().UTC()
		res := tx.Model(&courseModels.Certificate{}).
			Where("id = ? AND status <> ?", cert.ID, courseModels.CertificateRevoked).
			Updates(map[string]interface{}{
				"status":         courseModels.CertificateRevoked,
				"revoked_at":     revokedAt,
				"revoked_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState(op, "certificate is already revoked")
		}

		if err := tx.Model(&courseModels.Enrollment{}).
			Where("certificate_id = ?", cert.ID).
			Update("certificate_id", nil).Error; err != nil {
			return err
		}
		return tx.First(&cert, cert.ID).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "certificate not found")
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[CERTIFICATE] revoked %s: %s", cert.CertificateNumber, reason)
	return &cert, nil
}

// ListForUser returns the learner's certificates, newest first, with their
// status derived at call time.
func (e *Engine) ListForUser(ctx context.Context, userID uint) ([]courseModels.Certificate, error) {
	var certs []courseModels.Certificate
	if err := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issue_date desc, id desc").
		Find(&certs).Error; err != nil {
		return nil, err
	}

	t := e.now()
	for i := range certs {
		certs[i].Status = StatusAt(&certs[i], t)
	}
	return certs, nil
}

// ExpireDue persists the expired status on active certificates whose expiry
// date has passed and returns how many were updated.
func (e *Engine) ExpireDue(ctx context.Context) (int64, error) {
	res := e.db.WithContext(ctx).Model(&courseModels.Certificate{}).
		Where("status = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", courseModels.CertificateActive, e.now().UTC()).
		Update("status", courseModels.CertificateExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
