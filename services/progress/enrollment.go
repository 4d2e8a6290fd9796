package progress

import (
	"context"
	"errors"
	"log"

	"lms/apperr"
	courseModels "lms/models/course"
	"lms/services/certification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnrollmentDetail is an enrollment with its per-lesson records.
type EnrollmentDetail struct {
	Enrollment courseModels.Enrollment       `json:"enrollment"`
	Lessons    []courseModels.LessonProgress `json:"lessons,omitempty"`
}

// Enroll enrolls the learner in a course or path. Enrolling twice returns
// the existing enrollment. Enrolling in a path also enrolls in its
// published member courses.
func (t *Tracker) Enroll(ctx context.Context, userID uint, enrollableType string, enrollableID uint) (*courseModels.Enrollment, error) {
	const op = "progress.Enroll"

	switch enrollableType {
	case courseModels.EnrollableCourse:
		return t.enrollCourse(ctx, op, userID, enrollableID)
	case courseModels.EnrollablePath:
		return t.enrollPath(ctx, op, userID, enrollableID)
	default:
		return nil, apperr.Validation(op, "enrollable type must be course or path")
	}
}

func (t *Tracker) enrollCourse(ctx context.Context, op string, userID, courseID uint) (*courseModels.Enrollment, error) {
	db := t.db.WithContext(ctx)

	var course courseModels.Course
	if err := db.Where("id = ? AND is_published = ? AND is_deleted = ?", courseID, true, false).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "course not found")
		}
		return nil, err
	}

	var total int64
	if err := db.Model(&courseModels.Lesson{}).
		Where("course_id = ? AND is_published = ? AND is_deleted = ?", courseID, true, false).
		Count(&total).Error; err != nil {
		return nil, err
	}

	enrollment, created, err := t.insertEnrollment(ctx, courseModels.Enrollment{
		UserID:         userID,
		EnrollableType: courseModels.EnrollableCourse,
		EnrollableID:   courseID,
		Status:         courseModels.EnrollmentEnrolled,
		TotalLessons:   int(total),
	})
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("[PROGRESS] user %d enrolled in course %d", userID, courseID)
	}
	return enrollment, nil
}

func (t *Tracker) enrollPath(ctx context.Context, op string, userID, pathID uint) (*courseModels.Enrollment, error) {
	db := t.db.WithContext(ctx)

	var path courseModels.Path
	if err := db.Where("id = ? AND is_published = ? AND is_deleted = ?", pathID, true, false).First(&path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "path not found")
		}
		return nil, err
	}

	counted, err := certification.CountedCourses(db, &path)
	if err != nil {
		return nil, err
	}

	enrollment, created, err := t.insertEnrollment(ctx, courseModels.Enrollment{
		UserID:         userID,
		EnrollableType: courseModels.EnrollablePath,
		EnrollableID:   pathID,
		Status:         courseModels.EnrollmentEnrolled,
		TotalLessons:   len(counted),
	})
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("[PROGRESS] user %d enrolled in path %d", userID, pathID)
	}

	var members []courseModels.PathCourse
	if err := db.Where("path_id = ?", pathID).Order("order_index asc, id asc").Find(&members).Error; err != nil {
		return nil, err
	}
	for _, m := range members {
		if _, err := t.enrollCourse(ctx, op, userID, m.CourseID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	if err := t.refreshPath(ctx, enrollment); err != nil {
		return nil, err
	}
	if enrollment.Status == courseModels.EnrollmentCompleted && t.evaluator != nil {
		if _, err := t.evaluator.EvaluateCompletion(ctx, userID, courseModels.EnrollablePath, pathID); err != nil {
			log.Printf("[PROGRESS] certification evaluation for user %d path %d failed: %v", userID, pathID, err)
		}
	}
	return enrollment, nil
}

// insertEnrollment creates e unless the learner is already enrolled and
// returns the stored row.
func (t *Tracker) insertEnrollment(ctx context.Context, e courseModels.Enrollment) (*courseModels.Enrollment, bool, error) {
	db := t.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&e)
	if res.Error != nil {
		return nil, false, res.Error
	}

	var stored courseModels.Enrollment
	if err := db.Where("user_id = ? AND enrollable_type = ? AND enrollable_id = ?", e.UserID, e.EnrollableType, e.EnrollableID).
		First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, res.RowsAffected > 0, nil
}

// GetEnrollment returns one of the learner's enrollments with its lesson
// progress.
func (t *Tracker) GetEnrollment(ctx context.Context, userID, enrollmentID uint) (*EnrollmentDetail, error) {
	const op = "progress.GetEnrollment"
	db := t.db.WithContext(ctx)

	var detail EnrollmentDetail
	if err := db.First(&detail.Enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "enrollment not found")
		}
		return nil, err
	}
	if detail.Enrollment.UserID != userID {
		return nil, apperr.Forbidden(op, "enrollment belongs to another learner")
	}

	if err := db.Where("enrollment_id = ?", enrollmentID).Order("lesson_id asc").Find(&detail.Lessons).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListEnrollments returns the learner's enrollments, most recently accessed
// first.
func (t *Tracker) ListEnrollments(ctx context.Context, userID uint) ([]courseModels.Enrollment, error) {
	var enrollments []courseModels.Enrollment
	err := t.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_accessed_at desc, id desc").
		Find(&enrollments).Error
	return enrollments, err
}

// refreshPaths recomputes the learner's path enrollments that contain
// courseID.
func (t *Tracker) refreshPaths(ctx context.Context, userID, courseID uint) error {
	db := t.db.WithContext(ctx)

	var pathIDs []uint
	if err := db.Model(&courseModels.PathCourse{}).Where("course_id = ?", courseID).Pluck("path_id", &pathIDs).Error; err != nil {
		return err
	}
	if len(pathIDs) == 0 {
		return nil
	}

	var enrollments []courseModels.Enrollment
	if err := db.Where("user_id = ? AND enrollable_type = ? AND enrollable_id IN ?", userID, courseModels.EnrollablePath, pathIDs).
		Find(&enrollments).Error; err != nil {
		return err
	}
	for i := range enrollments {
		if err := t.refreshPath(ctx, &enrollments[i]); err != nil {
			return err
		}
	}
	return nil
}

// refreshPath sets a path enrollment's progress from the completed counted
// courses and updates enrollment in place.
func (t *Tracker) refreshPath(ctx context.Context, enrollment *courseModels.Enrollment) error {
	db := t.db.WithContext(ctx)

	var path courseModels.Path
	if err := db.First(&path, enrollment.EnrollableID).Error; err != nil {
		return err
	}
	counted, err := certification.CountedCourses(db, &path)
	if err != nil {
		return err
	}

	var completed int64
	if len(counted) > 0 {
		if err := db.Model(&courseModels.Enrollment{}).
			Where("user_id = ? AND enrollable_type = ? AND enrollable_id IN ? AND status = ?",
				enrollment.UserID, courseModels.EnrollableCourse, counted, courseModels.EnrollmentCompleted).
			Count(&completed).Error; err != nil {
			return err
		}
	}

	total := int64(len(counted))
	updates := map[string]interface{}{
		"progress_percent":  percent(completed, total),
		"completed_lessons": completed,
		"total_lessons":     total,
	}
	now := t.opts.Now().UTC()
	switch {
	case enrollment.Status == courseModels.EnrollmentCompleted:
	case total > 0 && completed >= total:
		updates["status"] = courseModels.EnrollmentCompleted
		updates["completed_at"] = now
		updates["last_accessed_at"] = now
	case completed > 0:
		updates["status"] = courseModels.EnrollmentInProgress
	}

	if err := db.Model(&courseModels.Enrollment{}).Where("id = ?", enrollment.ID).Updates(updates).Error; err != nil {
		return err
	}
	return db.First(enrollment, enrollment.ID).Error
}
