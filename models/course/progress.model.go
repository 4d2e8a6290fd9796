package course

import (
	"time"

	"gorm.io/gorm"
)

// LessonProgress is the per (enrollment, lesson) record. WatchedPercent and
// VideoLastPosition are high-water marks, IsCompleted only goes false→true.
type LessonProgress struct {
	gorm.Model
	EnrollmentID      uint       `json:"enrollment_id" gorm:"uniqueIndex:idx_progress_lesson;not null"`
	LessonID          uint       `json:"lesson_id" gorm:"uniqueIndex:idx_progress_lesson;not null"`
	IsCompleted       bool       `json:"is_completed" gorm:"default:false"`
	CompletedAt       *time.Time `json:"completed_at"`
	VideoLastPosition float64    `json:"video_last_position" gorm:"default:0"`
	WatchedPercent    float64    `json:"watched_percent" gorm:"default:0"`
	TimeSpentSeconds  int64      `json:"time_spent_seconds" gorm:"default:0"`
}
