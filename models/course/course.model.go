package course

import "gorm.io/gorm"

// Course represents a learning course
type Course struct {
	gorm.Model
	Title                     string `json:"title"`
	Description               string `json:"description"`
	Author                    string `json:"author"`
	Status                    string `json:"status" gorm:"default:'ACTIVE'"` // DRAFT, ACTIVE, INACTIVE
	IsPublished               bool   `json:"is_published" gorm:"default:false"`
	FinalQuizID               *uint  `json:"final_quiz_id"`
	CertificateEnabled        bool   `json:"certificate_enabled"`
	CertificateValidityMonths *int   `json:"certificate_validity_months"` // nil = never expires
	IsDeleted                 bool   `gorm:"default:false"`
}
