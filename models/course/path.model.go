package course

import "gorm.io/gorm"

// Path is an ordered bundle of courses with its own certification policy
type Path struct {
	gorm.Model
	Title                     string  `json:"title"`
	Description               string  `json:"description"`
	RequireAllCourses         bool    `json:"require_all_courses"`
	RequireFinalExam          bool    `json:"require_final_exam" gorm:"default:false"`
	FinalExamQuizID           *uint   `json:"final_exam_quiz_id"`
	MinPassingScore           float64 `json:"min_passing_score" gorm:"default:0"`
	CertificateEnabled        bool    `json:"certificate_enabled"`
	CertificateValidityMonths *int    `json:"certificate_validity_months"`
	IsPublished               bool    `json:"is_published" gorm:"default:false"`
	IsDeleted                 bool    `gorm:"default:false"`
}

// PathCourse links a course into a path. IsOptional only matters when the
// path does not require all courses.
type PathCourse struct {
	gorm.Model
	PathID     uint `json:"path_id" gorm:"uniqueIndex:idx_path_course;not null"`
	CourseID   uint `json:"course_id" gorm:"uniqueIndex:idx_path_course;not null"`
	IsOptional bool `json:"is_optional" gorm:"default:false"`
	OrderIndex int  `json:"order_index" gorm:"default:0"`
}
