package models

import (
	"gorm.io/gorm"
)

// Permission names checked by the admin routes
const (
	PermissionCertificateRevoke = "certificate-revoke"
	PermissionAttemptSweep      = "attempt-sweep"
)

type Permission struct {
	gorm.Model
	UserID     uint   `gorm:"index;not null"`    // Foreign key
	User       User   `gorm:"foreignKey:UserID"` // Association with User
	Permission string `gorm:"type:varchar(255)"` // e.g., "certificate-revoke"
	IsDeleted  bool   `gorm:"default:false"`
}
