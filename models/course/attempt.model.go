package course

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
	AttemptExpired    = "expired"
)

// QuizAttempt is one attempt of a quiz by a learner. Policy fields and the
// question set are copied from the quiz when the attempt starts.
//
// OpenKey is "<user>:<quiz>" while the attempt is in progress and NULL once
// it is terminal; its unique index allows one open attempt per learner and quiz.
type QuizAttempt struct {
	gorm.Model
	UserID           uint           `json:"user_id" gorm:"index;not null"`
	QuizID           uint           `json:"quiz_id" gorm:"index;not null"`
	AttemptNumber    int            `json:"attempt_number" gorm:"default:1"`
	Status           string         `json:"status" gorm:"index;default:'in_progress'"`
	StartedAt        time.Time      `json:"started_at"`
	TimeLimitSeconds *int           `json:"time_limit_seconds"`
	Deadline         *time.Time     `json:"deadline" gorm:"index"`
	PassingScore     float64        `json:"passing_score"`
	PartialCredit    bool           `json:"partial_credit"`
	ExpireOnTimeout  bool           `json:"-"`
	QuestionSnapshot datatypes.JSON `json:"-"`
	ScorePercent     *float64       `json:"score_percent"`
	PointsEarned     float64        `json:"points_earned"`
	PointsPossible   float64        `json:"points_possible"`
	Passed           *bool          `json:"passed"`
	SubmittedAt      *time.Time     `json:"submitted_at"`
	AutoSubmitted    bool           `json:"auto_submitted" gorm:"default:false"`
	OpenKey          *string        `json:"-" gorm:"uniqueIndex;size:64"`
}

// QuizAttemptAnswer is one entry of an attempt's response map.
type QuizAttemptAnswer struct {
	gorm.Model
	AttemptID  uint           `json:"attempt_id" gorm:"uniqueIndex:idx_attempt_question;not null"`
	QuestionID uint           `json:"question_id" gorm:"uniqueIndex:idx_attempt_question;not null"`
	Value      datatypes.JSON `json:"value"`
	AnsweredAt time.Time      `json:"answered_at"`
}
