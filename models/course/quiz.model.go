package course

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	QuestionMCQ            = "mcq"
	QuestionMultipleSelect = "multiple_select"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
)

const (
	ScorePolicyLatest = "latest"
	ScorePolicyBest   = "best"
)

// Quiz is the static definition of an assessment. Either CourseID or PathID
// is set.
type Quiz struct {
	gorm.Model
	CourseID          *uint   `json:"course_id" gorm:"index"`
	PathID            *uint   `json:"path_id" gorm:"index"`
	Title             string  `json:"title"`
	PassingScore      float64 `json:"passing_score"`
	TimeLimitMinutes  *int    `json:"time_limit_minutes"`
	AllowRetake       bool    `json:"allow_retake" gorm:"default:false"`
	MaxAttempts       *int    `json:"max_attempts"`
	RetakeScorePolicy string  `json:"retake_score_policy" gorm:"default:'latest'"` // latest, best
	PartialCredit     bool    `json:"partial_credit" gorm:"default:false"`
	ExpireOnTimeout   bool    `json:"expire_on_timeout" gorm:"default:false"` // false = auto-submit on timeout
	IsPublished       bool    `json:"is_published" gorm:"default:false"`
	IsDeleted         bool    `gorm:"default:false"`
}

// QuizQuestion holds one question with its answer key. The answer key is
// never serialized to learners.
type QuizQuestion struct {
	gorm.Model
	QuizID          uint           `json:"quiz_id" gorm:"index;not null"`
	Type            string         `json:"type" gorm:"not null"` // mcq, multiple_select, true_false, short_answer
	Prompt          string         `json:"prompt" gorm:"type:text"`
	Options         datatypes.JSON `json:"options"` // JSON array of option texts
	CorrectIndex    *int           `json:"-"`
	CorrectIndexes  datatypes.JSON `json:"-"` // JSON array of ints
	CorrectBool     *bool          `json:"-"`
	AcceptedAnswers datatypes.JSON `json:"-"` // JSON array of strings
	Explanation     string         `json:"-" gorm:"type:text"`
	Points          float64        `json:"points" gorm:"default:1"`
	OrderIndex      int            `json:"order_index" gorm:"default:0"`
	IsDeleted       bool           `gorm:"default:false"`
}
