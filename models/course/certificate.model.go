package course

import (
	"time"

	"gorm.io/gorm"
)

const (
	CertificateActive  = "active"
	CertificateExpired = "expired"
	CertificateRevoked = "revoked"
)

// Certificate represents an issued certificate for a course or path.
//
// ActiveKey is "<user>:<type>:<id>" and is kept after revocation; its unique
// index is what guarantees a single certificate per learner and enrollable.
type Certificate struct {
	gorm.Model
	UserID            uint       `json:"user_id" gorm:"index;not null"`
	RecipientName     string     `json:"recipient_name"`
	EnrollableType    string     `json:"enrollable_type" gorm:"size:16;not null"`
	EnrollableID      uint       `json:"enrollable_id" gorm:"not null"`
	EnrollableTitle   string     `json:"enrollable_title"`
	CertificateNumber string     `json:"certificate_number" gorm:"uniqueIndex;size:64"`
	VerificationCode  string     `json:"verification_code" gorm:"uniqueIndex;size:64"`
	IssueDate         time.Time  `json:"issue_date"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	FinalScore        *float64   `json:"final_score"`
	Status            string     `json:"status" gorm:"default:'active'"`
	RevokedAt         *time.Time `json:"revoked_at"`
	RevokedReason     string     `json:"revoked_reason"`
	VerifiedCount     int64      `json:"verified_count" gorm:"default:0"`
	LastVerifiedAt    *time.Time `json:"last_verified_at"`
	ActiveKey         *string    `json:"-" gorm:"uniqueIndex;size:96"`
}
