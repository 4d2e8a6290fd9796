package course

import "gorm.io/gorm"

const (
	LessonVideo = "VIDEO"
	LessonText  = "TEXT"
	LessonPDF   = "PDF"
	LessonQuiz  = "QUIZ"
)

// Lesson is one unit of a course curriculum. Every published, non-deleted
// lesson counts towards enrollment progress.
type Lesson struct {
	gorm.Model
	CourseID             uint     `json:"course_id" gorm:"index;not null"`
	ModuleID             uint     `json:"module_id" gorm:"index"`
	Title                string   `json:"title"`
	ContentType          string   `json:"content_type" gorm:"default:'TEXT'"` // VIDEO, TEXT, PDF, QUIZ
	VideoURL             string   `json:"video_url"`
	DurationSeconds      int      `json:"duration_seconds" gorm:"default:0"`
	MinVideoWatchPercent *float64 `json:"min_video_watch_percent"` // nil = default threshold
	QuizID               *uint    `json:"quiz_id"`                 // quiz gating this lesson
	OrderIndex           int      `json:"order_index" gorm:"default:0"`
	IsPublished          bool     `json:"is_published" gorm:"default:false"`
	IsDeleted            bool     `gorm:"default:false"`
}
