// Package progress turns lesson interactions into durable enrollment
// progress.
package progress

import (
	"context"
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

// CompletionEvaluator is run after an enrollment completes.
type CompletionEvaluator interface {
	EvaluateCompletion(ctx context.Context, userID uint, enrollableType string, enrollableID uint) (*certification.Evaluation, error)
	EvaluateCourseAndPaths(ctx context.Context, userID, courseID uint) error
}

type Options struct {
	MaxTimeSpentDelta   int64   // seconds accepted from a single event
	DefaultWatchPercent float64 // completion threshold for video lessons without one
	Now                 func() time.Time
}

type Tracker struct {
	db        *gorm.DB
	evaluator CompletionEvaluator
	opts      Options
}

func NewTracker(db *gorm.DB, evaluator CompletionEvaluator, opts Options) *Tracker {
	if opts.MaxTimeSpentDelta <= 0 {
		opts.MaxTimeSpentDelta = 300
	}
	if !validPercent(opts.DefaultWatchPercent) {
		opts.DefaultWatchPercent = DefaultWatchThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{db: db, evaluator: evaluator, opts: opts}
}

// Result is the state after an event was applied.
type Result struct {
	Enrollment      courseModels.Enrollment     `json:"enrollment"`
	LessonProgress  courseModels.LessonProgress `json:"lesson_progress"`
	LessonCompleted bool                        `json:"lesson_completed"` // completed by this event
}

// RecordLessonEvent applies ev to the learner's progress on lessonID.
// Position and watched percent only ever move forward, completion is one
// way and time spent accumulates, so replayed or reordered events are safe.
func (t *Tracker) RecordLessonEvent(ctx context.Context, userID, enrollmentID, lessonID uint, ev Event) (*Result, error) {
	const op = "progress.RecordLessonEvent"

	if err := validateEvent(op, ev); err != nil {
		return nil, err
	}

	enrollment, lesson, err := t.loadLesson(ctx, op, userID, enrollmentID, lessonID)
	if err != nil {
		return nil, err
	}
	if _, ok := ev.(ExplicitComplete); ok && lesson.QuizID != nil {
		return nil, apperr.InvalidState(op, "lesson is completed by passing its quiz")
	}

	delta := ClampDelta(timeSpentDelta(ev), t.opts.MaxTimeSpentDelta)
	now := t.opts.Now().UTC()
	result := &Result{}

	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touch the enrollment first so concurrent events on it serialize.
		if err := tx.Model(&courseModels.Enrollment{}).
			Where("id = ?", enrollment.ID).
			Updates(map[string]interface{}{
				"last_accessed_at":         now,
				"total_time_spent_seconds": gorm.Expr("total_time_spent_seconds + ?", delta),
				"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
					courseModels.EnrollmentEnrolled, courseModels.EnrollmentInProgress),
			}).Error; err != nil {
			return err
		}

		lp, err := ensureLessonProgress(tx, enrollment.ID, lesson.ID)
		if err != nil {
			return err
		}

		if delta > 0 {
			if err := tx.Model(&courseModels.LessonProgress{}).
				Where("id = ?", lp.ID).
				Update("time_spent_seconds", gorm.Expr("time_spent_seconds + ?", delta)).Error; err != nil {
				return err
			}
		}

		complete := false
		switch ev := ev.(type) {
		case VideoProgress:
			if err := raise(tx, lp.ID, "watched_percent", ev.WatchedPercent); err != nil {
				return err
			}
			if err := raise(tx, lp.ID, "video_last_position", ev.Position); err != nil {
				return err
			}
			watched := max(lp.WatchedPercent, ev.WatchedPercent)
			complete = lesson.ContentType == courseModels.LessonVideo && lesson.QuizID == nil &&
				watched >= WatchThreshold(lesson, t.opts.DefaultWatchPercent)
		case ExplicitComplete, quizPassed:
			complete = true
		}

		if complete {
			res := tx.Model(&courseModels.LessonProgress{}).
				Where("id = ? AND is_completed = ?", lp.ID, false).
				Updates(map[string]interface{}{"is_completed": true, "completed_at": now})
			if res.Error != nil {
				return res.Error
			}
			result.LessonCompleted = res.RowsAffected > 0
		}

		if err := recompute(tx, enrollment, now); err != nil {
			return err
		}

		if err := tx.First(&result.LessonProgress, lp.ID).Error; err != nil {
			return err
		}
		return tx.First(&result.Enrollment, enrollment.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if result.LessonCompleted {
		log.Printf("[PROGRESS] user %d completed lesson %d (enrollment %d, %.1f%%)",
			userID, lesson.ID, enrollment.ID, result.Enrollment.ProgressPercent)
	}

	if result.Enrollment.Status == courseModels.EnrollmentCompleted && result.LessonProgress.IsCompleted {
		if err := t.afterCourseCompleted(ctx, userID, enrollment.EnrollableID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return result, nil
}

// ResumePoint returns where playback of lessonID should start.
func (t *Tracker) ResumePoint(ctx context.Context, userID, enrollmentID, lessonID uint) (*Resume, error) {
	const op = "progress.ResumePoint"

	enrollment, lesson, err := t.loadLesson(ctx, op, userID, enrollmentID, lessonID)
	if err != nil {
		return nil, err
	}

	var lp courseModels.LessonProgress
	res := t.db.WithContext(ctx).
		Where("enrollment_id = ? AND lesson_id = ?", enrollment.ID, lesson.ID).
		Limit(1).Find(&lp)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return resumeFrom(lesson.ID, nil), nil
	}
	return resumeFrom(lesson.ID, &lp), nil
}

// CompleteQuizLessons completes every lesson gated by quizID in the
// learner's course enrollments. Lessons in courses the learner is not
// enrolled in are skipped.
func (t *Tracker) CompleteQuizLessons(ctx context.Context, userID, quizID uint) error {
	var lessons []courseModels.Lesson
	if err := t.db.WithContext(ctx).
		Where("quiz_id = ? AND is_published = ? AND is_deleted = ?", quizID, true, false).
		Find(&lessons).Error; err != nil {
		return err
	}

	var errs []error
	for _, lesson := range lessons {
		var enrollment courseModels.Enrollment
		res := t.db.WithContext(ctx).
			Where("user_id = ? AND enrollable_type = ? AND enrollable_id = ?", userID, courseModels.EnrollableCourse, lesson.CourseID).
			Limit(1).Find(&enrollment)
		if res.Error != nil {
			errs = append(errs, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		if _, err := t.RecordLessonEvent(ctx, userID, enrollment.ID, lesson.ID, quizPassed{}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tracker) afterCourseCompleted(ctx context.Context, userID, courseID uint) error {
	if err := t.refreshPaths(ctx, userID, courseID); err != nil {
		return err
	}
	if t.evaluator == nil {
		return nil
	}
	if err := t.evaluator.EvaluateCourseAndPaths(ctx, userID, courseID); err != nil {
		log.Printf("[PROGRESS] certification evaluation for user %d course %d failed: %v", userID, courseID, err)
		return err
	}
	return nil
}

// loadLesson resolves and authorizes the (enrollment, lesson) pair.
func (t *Tracker) loadLesson(ctx context.Context, op string, userID, enrollmentID, lessonID uint) (*courseModels.Enrollment, *courseModels.Lesson, error) {
	db := t.db.WithContext(ctx)

	var enrollment courseModels.Enrollment
	if err := db.First(&enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound(op, "enrollment not found")
		}
		return nil, nil, err
	}
	if enrollment.UserID != userID {
		return nil, nil, apperr.Forbidden(op, "enrollment belongs to another learner")
	}
	if enrollment.EnrollableType != courseModels.EnrollableCourse {
		return nil, nil, apperr.NotFound(op, "lesson is not part of this enrollment")
	}

	var lesson courseModels.Lesson
	err := db.Where("id = ? AND course_id = ? AND is_published = ? AND is_deleted = ?",
		lessonID, enrollment.EnrollableID, true, false).
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound(op, "lesson is not part of this enrollment")
	}
	if err != nil {
		return nil, nil, err
	}
	return &enrollment, &lesson, nil
}

func ensureLessonProgress(tx *gorm.DB, enrollmentID, lessonID uint) (*courseModels.LessonProgress, error) {
	lp := courseModels.LessonProgress{EnrollmentID: enrollmentID, LessonID: lessonID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lp).Error; err != nil {
		return nil, err
	}
	var stored courseModels.LessonProgress
	if err := tx.Where("enrollment_id = ? AND lesson_id = ?", enrollmentID, lessonID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// raise sets column to value only when it is higher than the stored value.
func raise(tx *gorm.DB, id uint, column string, value float64) error {
	return tx.Model(&courseModels.LessonProgress{}).
		Where("id = ? AND "+column+" < ?", id, value).
		Update(column, value).Error
}

// recompute derives progress_percent from the completed lessons of the
// course curriculum. An enrollment that reached completed stays completed.
func recompute(tx *gorm.DB, enrollment *courseModels.Enrollment, now time.Time) error {
	var total int64
	if err := tx.Model(&courseModels.Lesson{}).
		Where("course_id = ? AND is_published = ? AND is_deleted = ?", enrollment.EnrollableID, true, false).
		Count(&total).Error; err != nil {
		return err
	}

	var completed int64
	if err := tx.Model(&courseModels.LessonProgress{}).
		Joins("JOIN lessons ON lessons.id = lesson_progresses.lesson_id").
		Where("lesson_progresses.enrollment_id = ? AND lesson_progresses.is_completed = ?", enrollment.ID, true).
		Where("lessons.course_id = ? AND lessons.is_published = ? AND lessons.is_deleted = ? AND lessons.deleted_at IS NULL",
			enrollment.EnrollableID, true, false).
		Count(&completed).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"progress_percent":  percent(completed, total),
		"completed_lessons": completed,
		"total_lessons":     total,
	}
	if total > 0 && completed >= total {
		updates["status"] = courseModels.EnrollmentCompleted
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", now)
	}
	return tx.Model(&courseModels.Enrollment{}).Where("id = ?", enrollment.ID).Updates(updates).Error
}

func percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
