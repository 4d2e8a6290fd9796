// Package quiz runs the lifecycle of quiz attempts: start, answer, submit
// and the server-owned time limit.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"lms/apperr"
	courseModels "lms/models/course"
	"lms/services/certification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LessonCompleter completes the lessons a passed quiz gates.
type LessonCompleter interface {
	CompleteQuizLessons(ctx context.Context, userID, quizID uint) error
}

// CompletionEvaluator re-evaluates certification after a final quiz or
// exam is passed.
type CompletionEvaluator interface {
	EvaluateCompletion(ctx context.Context, userID uint, enrollableType string, enrollableID uint) (*certification.Evaluation, error)
	EvaluateCourseAndPaths(ctx context.Context, userID, courseID uint) error
}

type Options struct {
	Now func() time.Time
}

type Service struct {
	db        *gorm.DB
	lessons   LessonCompleter
	evaluator CompletionEvaluator
	now       func() time.Time
}

func NewService(db *gorm.DB, lessons LessonCompleter, evaluator CompletionEvaluator, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, lessons: lessons, evaluator: evaluator, now: opts.Now}
}

// StartResult is a new attempt with its questions, answer keys withheld.
type StartResult struct {
	Attempt   courseModels.QuizAttempt `json:"attempt"`
	Questions []PublicQuestion         `json:"questions"`
}

// AttemptView is an attempt as returned to its owner. Questions are listed
// while it is open, Review once it is terminal.
type AttemptView struct {
	Attempt          courseModels.QuizAttempt `json:"attempt"`
	Questions        []PublicQuestion         `json:"questions,omitempty"`
	Answers          map[uint]json.RawMessage `json:"answers"`
	Review           []QuestionResult         `json:"review,omitempty"`
	RemainingSeconds *int64                   `json:"remaining_seconds,omitempty"`
}

// Start opens a new attempt. Overdue attempts of the learner are settled
// first. Starting fails with Conflict while another attempt is open, when a
// terminal attempt exists and retakes are off, or when max attempts is
// reached.
func (s *Service) Start(ctx context.Context, userID, quizID uint) (*StartResult, error) {
	const op = "quiz.Start"
	db := s.db.WithContext(ctx)
	now := s.now().UTC()

	var quiz courseModels.Quiz
	if err := db.Where("id = ? AND is_published = ? AND is_deleted = ?", quizID, true, false).First(&quiz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "quiz not found")
		}
		return nil, err
	}

	if err := s.settleOverdueFor(ctx, userID, quizID, now); err != nil {
		return nil, err
	}

	var rows []courseModels.QuizQuestion
	if err := db.Where("quiz_id = ? AND is_deleted = ?", quizID, false).Order("order_index asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.InvalidState(op, "quiz has no questions")
	}
	questions, snapshot, err := buildSnapshot(rows, quiz.PartialCredit)
	if err != nil {
		return nil, fmt.Errorf("%s: quiz %d: %w", op, quizID, err)
	}

	key := openKey(userID, quizID)
	attempt := courseModels.QuizAttempt{
		UserID:           userID,
		QuizID:           quizID,
		Status:           courseModels.AttemptInProgress,
		StartedAt:        now,
		PassingScore:     quiz.PassingScore,
		PartialCredit:    quiz.PartialCredit,
		ExpireOnTimeout:  quiz.ExpireOnTimeout,
		QuestionSnapshot: snapshot,
		OpenKey:          &key,
	}
	if quiz.TimeLimitMinutes != nil && *quiz.TimeLimitMinutes > 0 {
		limit := *quiz.TimeLimitMinutes * 60
		deadline := now.Add(time.Duration(limit) * time.Second)
		attempt.TimeLimitSeconds = &limit
		attempt.Deadline = &deadline
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var previous []courseModels.QuizAttempt
		if err := tx.Where("user_id = ? AND quiz_id = ?", userID, quizID).Find(&previous).Error; err != nil {
			return err
		}
		for _, a := range previous {
			if a.Status == courseModels.AttemptInProgress {
				return apperr.Conflict(op, "an attempt is already in progress")
			}
		}
		if len(previous) > 0 && !quiz.AllowRetake {
			return apperr.Conflict(op, "retakes are not allowed for this quiz")
		}
		if quiz.MaxAttempts != nil && len(previous) >= *quiz.MaxAttempts {
			return apperr.Conflict(op, "maximum number of attempts reached")
		}

		attempt.AttemptNumber = len(previous) + 1
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&attempt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict(op, "an attempt is already in progress")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[QUIZ] user %d started attempt %d of quiz %d", userID, attempt.ID, quizID)

	public := make([]PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, Public(q))
	}
	return &StartResult{Attempt: attempt, Questions: public}, nil
}

// Answer records the answer to one question, replacing any earlier answer.
func (s *Service) Answer(ctx context.Context, userID, attemptID, questionID uint, value json.RawMessage) (*AttemptView, error) {
	const op = "quiz.Answer"
	now := s.now().UTC()

	attempt, err := s.loadOwned(ctx, op, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != courseModels.AttemptInProgress {
		return nil, apperr.InvalidState(op, "attempt already completed")
	}
	if overdue(attempt, now) {
		if _, err := s.timeOut(ctx, attempt, now); err != nil {
			return nil, err
		}
		return nil, apperr.InvalidState(op, "time limit reached, the attempt has been closed")
	}

	questions, err := decodeSnapshot(attempt.QuestionSnapshot, attempt.PartialCredit)
	if err != nil {
		return nil, err
	}
	q := findQuestion(questions, questionID)
	if q == nil {
		return nil, apperr.Validation(op, "question is not part of this attempt")
	}
	if _, err := q.ParseAnswer(value); err != nil {
		return nil, apperr.Validation(op, err.Error())
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := lockOpen(tx, attempt.ID, now, true)
		if err != nil {
			return err
		}
		if !open {
			return apperr.InvalidState(op, "attempt already completed")
		}
		return upsertAnswers(tx, attempt.ID, map[uint]json.RawMessage{questionID: value}, now)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, attempt.ID, now)
}

// Submit merges finalResponses, closes the attempt and scores it. Submitting
// a closed attempt returns the stored result. After the deadline the attempt
// is closed with the answers on record and finalResponses are ignored.
func (s *Service) Submit(ctx context.Context, userID, attemptID uint, finalResponses map[uint]json.RawMessage) (*AttemptView, error) {
	const op = "quiz.Submit"
	now := s.now().UTC()

	attempt, err := s.loadOwned(ctx, op, userID, attemptID)
	if err != nil {
		return nil, err
	}

	switch {
	case attempt.Status != courseModels.AttemptInProgress:
	case overdue(attempt, now):
		if attempt, err = s.timeOut(ctx, attempt, now); err != nil {
			return nil, err
		}
	default:
		if err := validateResponses(op, attempt, finalResponses); err != nil {
			return nil, err
		}
		if attempt, err = s.finalize(ctx, attempt, finalResponses, false, now); err != nil {
			return nil, err
		}
	}

	if err := s.afterSubmit(ctx, attempt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.view(ctx, attempt.ID, now)
}

// Get returns the attempt, closing it first if its deadline has passed.
func (s *Service) Get(ctx context.Context, userID, attemptID uint) (*AttemptView, error) {
	const op = "quiz.Get"
	now := s.now().UTC()

	attempt, err := s.loadOwned(ctx, op, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if overdue(attempt, now) {
		settled, err := s.timeOut(ctx, attempt, now)
		if err != nil {
			return nil, err
		}
		if err := s.afterSubmit(ctx, settled); err != nil {
			log.Printf("[QUIZ] post-submit hooks for attempt %d failed: %v", attempt.ID, err)
		}
	}
	return s.view(ctx, attempt.ID, now)
}

// SettleOverdue closes up to limit attempts whose deadline has passed. It
// only hastens what the next request would do anyway.
func (s *Service) SettleOverdue(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()

	var attempts []courseModels.QuizAttempt
	q := s.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline <= ?", courseModels.AttemptInProgress, now).
		Order("deadline asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&attempts).Error; err != nil {
		return 0, err
	}

	settled := 0
	var errs []error
	for i := range attempts {
		a, err := s.timeOut(ctx, &attempts[i], now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		settled++
		if err := s.afterSubmit(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return settled, errors.Join(errs...)
}

func (s *Service) settleOverdueFor(ctx context.Context, userID, quizID uint, now time.Time) error {
	var attempts []courseModels.QuizAttempt
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status = ? AND deadline IS NOT NULL AND deadline <= ?",
			userID, quizID, courseModels.AttemptInProgress, now).
		Find(&attempts).Error; err != nil {
		return err
	}
	for i := range attempts {
		a, err := s.timeOut(ctx, &attempts[i], now)
		if err != nil {
			return err
		}
		if err := s.afterSubmit(ctx, a); err != nil {
			log.Printf("[QUIZ] post-submit hooks for attempt %d failed: %v", a.ID, err)
		}
	}
	return nil
}

// timeOut performs the deadline transition: auto-submit with the answers
// on record, or expire unscored when the quiz says so.
func (s *Service) timeOut(ctx context.Context, attempt *courseModels.QuizAttempt, now time.Time) (*courseModels.QuizAttempt, error) {
	return s.finalize(ctx, attempt, nil, true, now)
}

// finalize closes an open attempt exactly once. The attempt row is locked by
// a conditional update first; if another request closed it already the
// stored attempt is returned unchanged.
func (s *Service) finalize(ctx context.Context, attempt *courseModels.QuizAttempt, final map[uint]json.RawMessage, timedOut bool, now time.Time) (*courseModels.QuizAttempt, error) {
	questions, err := decodeSnapshot(attempt.QuestionSnapshot, attempt.PartialCredit)
	if err != nil {
		return nil, err
	}

	var result courseModels.QuizAttempt
	closed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open, err := lockOpen(tx, attempt.ID, now, !timedOut)
		if err != nil {
			return err
		}
		if open {
			if len(final) > 0 {
				if err := upsertAnswers(tx, attempt.ID, final, now); err != nil {
					return err
				}
			}

			updates := map[string]interface{}{
				"submitted_at": now,
				"open_key":     nil,
			}
			if timedOut && attempt.ExpireOnTimeout {
				updates["status"] = courseModels.AttemptExpired
				updates["passed"] = false
			} else {
				answers, err := loadAnswers(tx, attempt.ID)
				if err != nil {
					return err
				}
				outcome := Score(questions, answers, attempt.PassingScore)
				updates["status"] = courseModels.AttemptSubmitted
				updates["score_percent"] = outcome.ScorePercent
				updates["points_earned"] = outcome.PointsEarned
				updates["points_possible"] = outcome.PointsPossible
				updates["passed"] = outcome.Passed
				updates["auto_submitted"] = timedOut
			}

			if err := tx.Model(&courseModels.QuizAttempt{}).Where("id = ?", attempt.ID).Updates(updates).Error; err != nil {
				return err
			}
			closed = true
		}
		return tx.First(&result, attempt.ID).Error
	})
	if err != nil {
		return nil, err
	}

	if closed {
		score := "-"
		if result.ScorePercent != nil {
			score = fmt.Sprintf("%.1f%%", *result.ScorePercent)
		}
		log.Printf("[QUIZ] attempt %d of user %d closed as %s (score %s, auto %t)",
			result.ID, result.UserID, result.Status, score, result.AutoSubmitted)
	}
	return &result, nil
}

// afterSubmit completes gated lessons and re-evaluates certification when a
// submitted attempt passed. Every step is idempotent, so it runs again for
// repeated submits.
func (s *Service) afterSubmit(ctx context.Context, attempt *courseModels.QuizAttempt) error {
	if attempt.Status != courseModels.AttemptSubmitted || attempt.Passed == nil || !*attempt.Passed {
		return nil
	}
	db := s.db.WithContext(ctx)
	var errs []error

	if s.lessons != nil {
		if err := s.lessons.CompleteQuizLessons(ctx, attempt.UserID, attempt.QuizID); err != nil {
			errs = append(errs, err)
		}
	}
	if s.evaluator == nil {
		return errors.Join(errs...)
	}

	var courseIDs []uint
	if err := db.Model(&courseModels.Course{}).Where("final_quiz_id = ?", attempt.QuizID).Pluck("id", &courseIDs).Error; err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, id := range courseIDs {
		if err := s.evaluator.EvaluateCourseAndPaths(ctx, attempt.UserID, id); err != nil {
			errs = append(errs, err)
		}
	}

	var pathIDs []uint
	if err := db.Model(&courseModels.Enrollment{}).
		Joins("JOIN paths ON paths.id = enrollments.enrollable_id").
		Where("enrollments.user_id = ? AND enrollments.enrollable_type = ? AND paths.final_exam_quiz_id = ?",
			attempt.UserID, courseModels.EnrollablePath, attempt.QuizID).
		Pluck("paths.id", &pathIDs).Error; err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, id := range pathIDs {
		if _, err := s.evaluator.EvaluateCompletion(ctx, attempt.UserID, courseModels.EnrollablePath, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) loadOwned(ctx context.Context, op string, userID, attemptID uint) (*courseModels.QuizAttempt, error) {
	var attempt courseModels.QuizAttempt
	if err := s.db.WithContext(ctx).First(&attempt, attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "attempt not found")
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, apperr.Forbidden(op, "attempt belongs to another learner")
	}
	return &attempt, nil
}

func (s *Service) view(ctx context.Context, attemptID uint, now time.Time) (*AttemptView, error) {
	db := s.db.WithContext(ctx)

	var attempt courseModels.QuizAttempt
	if err := db.First(&attempt, attemptID).Error; err != nil {
		return nil, err
	}
	answers, err := loadAnswers(db, attemptID)
	if err != nil {
		return nil, err
	}
	questions, err := decodeSnapshot(attempt.QuestionSnapshot, attempt.PartialCredit)
	if err != nil {
		return nil, err
	}

	v := &AttemptView{Attempt: attempt, Answers: answers}
	if attempt.Status == courseModels.AttemptInProgress {
		v.Questions = make([]PublicQuestion, 0, len(questions))
		for _, q := range questions {
			v.Questions = append(v.Questions, Public(q))
		}
		if attempt.Deadline != nil {
			remaining := int64(attempt.Deadline.Sub(now) / time.Second)
			v.RemainingSeconds = &remaining
		}
		return v, nil
	}
	v.Review = Score(questions, answers, attempt.PassingScore).Results
	return v, nil
}

// lockOpen takes the attempt row with a conditional update and reports
// whether it is still open. With beforeDeadline an attempt past its deadline
// counts as closed.
func lockOpen(tx *gorm.DB, attemptID uint, now time.Time, beforeDeadline bool) (bool, error) {
	q := tx.Model(&courseModels.QuizAttempt{}).Where("id = ? AND status = ?", attemptID, courseModels.AttemptInProgress)
	if beforeDeadline {
		q = q.Where("deadline IS NULL OR deadline > ?", now)
	}
	res := q.Update("updated_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func upsertAnswers(tx *gorm.DB, attemptID uint, answers map[uint]json.RawMessage, now time.Time) error {
	for questionID, value := range answers {
		row := courseModels.QuizAttemptAnswer{
			AttemptID:  attemptID,
			QuestionID: questionID,
			Value:      []byte(value),
			AnsweredAt: now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "answered_at", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func loadAnswers(db *gorm.DB, attemptID uint) (map[uint]json.RawMessage, error) {
	var rows []courseModels.QuizAttemptAnswer
	if err := db.Where("attempt_id = ?", attemptID).Find(&rows).Error; err != nil {
		return nil, err
	}
	answers := make(map[uint]json.RawMessage, len(rows))
	for _, r := range rows {
		answers[r.QuestionID] = json.RawMessage(r.Value)
	}
	return answers, nil
}

func validateResponses(op string, attempt *courseModels.QuizAttempt, responses map[uint]json.RawMessage) error {
	if len(responses) == 0 {
		return nil
	}
	questions, err := decodeSnapshot(attempt.QuestionSnapshot, attempt.PartialCredit)
	if err != nil {
		return err
	}
	for questionID, value := range responses {
		q := findQuestion(questions, questionID)
		if q == nil {
			return apperr.Validation(op, fmt.Sprintf("question %d is not part of this attempt", questionID))
		}
		if _, err := q.ParseAnswer(value); err != nil {
			return apperr.Validation(op, fmt.Sprintf("question %d: %v", questionID, err))
		}
	}
	return nil
}

func findQuestion(questions []Question, id uint) Question {
	for _, q := range questions {
		if q.base().ID == id {
			return q
		}
	}
	return nil
}

func overdue(a *courseModels.QuizAttempt, now time.Time) bool {
	return a.Status == courseModels.AttemptInProgress && a.Deadline != nil && !now.Before(*a.Deadline)
}

func openKey(userID, quizID uint) string {
	return fmt.Sprintf("%d:%d", userID, quizID)
}
