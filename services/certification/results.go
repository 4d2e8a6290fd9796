package certification

import (
	"context"

	courseModels "lms/models/course"
)

// QuizResult is the attempt that counts for certification.
type QuizResult struct {
	AttemptID    uint
	ScorePercent float64
	Passed       bool
}

// SelectResult picks the counting attempt from submitted attempts ordered
// oldest first. ScorePolicyBest takes the highest score (earliest wins a
// tie); anything else takes the most recent attempt. Attempts without a
// score are ignored.
func SelectResult(attempts []courseModels.QuizAttempt, policy string) *QuizResult {
	var picked *courseModels.QuizAttempt
	for i := range attempts {
		a := &attempts[i]
		if a.Status != courseModels.AttemptSubmitted || a.ScorePercent == nil {
			continue
		}
		switch {
		case picked == nil:
			picked = a
		case policy == courseModels.ScorePolicyBest:
			if *a.ScorePercent > *picked.ScorePercent {
				picked = a
			}
		default:
			picked = a
		}
	}
	if picked == nil {
		return nil
	}
	return &QuizResult{
		AttemptID:    picked.ID,
		ScorePercent: *picked.ScorePercent,
		Passed:       picked.Passed != nil && *picked.Passed,
	}
}

// EffectiveResult loads the learner's submitted attempts for quizID and
// applies the quiz's retake score policy. It returns nil when nothing has
// been submitted yet.
func (e *Engine) EffectiveResult(ctx context.Context, userID, quizID uint) (*QuizResult, error) {
	var quiz courseModels.Quiz
	if err := e.db.WithContext(ctx).First(&quiz, quizID).Error; err != nil {
		return nil, err
	}

	var attempts []courseModels.QuizAttempt
	if err := e.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, courseModels.AttemptSubmitted).
		Order("submitted_at asc, id asc").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return SelectResult(attempts, quiz.RetakeScorePolicy), nil
}
