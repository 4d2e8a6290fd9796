package course

import (
	"time"

	"gorm.io/gorm"
)

const (
	EnrollableCourse = "course"
	EnrollablePath   = "path"
)

const (
	EnrollmentEnrolled   = "enrolled"
	EnrollmentInProgress = "in_progress"
	EnrollmentCompleted  = "completed"
)

// Enrollment tracks a user's enrollment in a course or path with progress
type Enrollment struct {
	gorm.Model
	UserID                uint       `json:"user_id" gorm:"uniqueIndex:idx_enrollment_item;not null"`
	EnrollableType        string     `json:"enrollable_type" gorm:"uniqueIndex:idx_enrollment_item;size:16;not null"`
	EnrollableID          uint       `json:"enrollable_id" gorm:"uniqueIndex:idx_enrollment_item;not null"`
	Status                string     `json:"status" gorm:"default:'enrolled'"`
	ProgressPercent       float64    `json:"progress_percent" gorm:"default:0"`
	CompletedLessons      int        `json:"completed_lessons" gorm:"default:0"` // completed courses for paths
	TotalLessons          int        `json:"total_lessons" gorm:"default:0"`     // member courses for paths
	LastAccessedAt        *time.Time `json:"last_accessed_at"`
	TotalTimeSpentSeconds int64      `json:"total_time_spent_seconds" gorm:"default:0"`
	CompletedAt           *time.Time `json:"completed_at"`
	CertificateID         *uint      `json:"certificate_id"`
}
