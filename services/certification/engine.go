// Package certification decides when a learner has earned a certificate for
// a course or path, issues it exactly once and answers public verification
// lookups.
package certification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lms/apperr"
	"lms/models"
	courseModels "lms/models/course"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier is told about newly issued certificates after they are committed.
type Notifier interface {
	CertificateIssued(ctx context.Context, cert *courseModels.Certificate) error
}

type Options struct {
	Now        func() time.Time
	Codes      Codes
	MaxRetries int // verification code collisions tolerated per issuance
}

type Engine struct {
	db         *gorm.DB
	notifier   Notifier
	now        func() time.Time
	codes      Codes
	maxRetries int
}

func NewEngine(db *gorm.DB, notifier Notifier, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Codes == nil {
		opts.Codes = RandomCodes
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	return &Engine{
		db:         db,
		notifier:   notifier,
		now:        opts.Now,
		codes:      opts.Codes,
		maxRetries: opts.MaxRetries,
	}
}

// Evaluation is the outcome of one completion check.
type Evaluation struct {
	Eligible    bool                      `json:"eligible"`
	Reasons     []string                  `json:"reasons,omitempty"`
	FinalScore  *float64                  `json:"final_score,omitempty"`
	Certificate *courseModels.Certificate `json:"certificate,omitempty"`
	Issued      bool                      `json:"issued"`
}

type eligibility struct {
	title          string
	enabled        bool
	validityMonths *int
	score          *float64
	reasons        []string
}

func (el *eligibility) eligible() bool { return len(el.reasons) == 0 }

func (el *eligibility) fail(format string, args ...any) {
	el.reasons = append(el.reasons, fmt.Sprintf(format, args...))
}

var errCodeCollision = errors.New("verification code collision")

// EvaluateCompletion checks the learner against the completion criteria of
// a course or path and issues the certificate the first time they are met.
// An existing certificate makes the call a no-op. A revoked one blocks
// issuance: it is never replaced by a later evaluation.
func (e *Engine) EvaluateCompletion(ctx context.Context, userID uint, enrollableType string, enrollableID uint) (*Evaluation, error) {
	const op = "certification.EvaluateCompletion"

	if enrollableType != courseModels.EnrollableCourse && enrollableType != courseModels.EnrollablePath {
		return nil, apperr.Validation(op, "enrollable type must be course or path")
	}

	var enrollment courseModels.Enrollment
	err := e.db.WithContext(ctx).
		Where("user_id = ? AND enrollable_type = ? AND enrollable_id = ?", userID, enrollableType, enrollableID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(op, "enrollment not found")
	}
	if err != nil {
		return nil, err
	}

	existing, err := activeCertificate(e.db.WithContext(ctx), userID, enrollableType, enrollableID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return settled(existing), nil
	}

	var check *eligibility
	if enrollableType == courseModels.EnrollableCourse {
		check, err = e.checkCourse(ctx, userID, enrollableID)
	} else {
		check, err = e.checkPath(ctx, userID, enrollableID)
	}
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{Eligible: check.eligible(), Reasons: check.reasons, FinalScore: check.score}
	if !eval.Eligible {
		return eval, nil
	}
	if !check.enabled {
		eval.Reasons = append(eval.Reasons, "certification is not enabled")
		return eval, nil
	}

	cert, issued, err := e.issue(ctx, &enrollment, check)
	if err != nil {
		return nil, err
	}
	if !issued {
		return settled(cert), nil
	}
	eval.Certificate = cert
	eval.Issued = true

	log.Printf("[CERTIFICATE] issued %s to user %d for %s %d", cert.CertificateNumber, userID, enrollableType, enrollableID)
	if e.notifier != nil {
		if err := e.notifier.CertificateIssued(ctx, cert); err != nil {
			log.Printf("[CERTIFICATE] notification for %s failed: %v", cert.CertificateNumber, err)
		}
	}
	return eval, nil
}

// EvaluateCourseAndPaths evaluates the course and every path containing it
// that the learner is enrolled in. Used whenever something the course
// depends on changes.
func (e *Engine) EvaluateCourseAndPaths(ctx context.Context, userID, courseID uint) error {
	db := e.db.WithContext(ctx)
	var errs []error

	var courseEnrollments int64
	if err := db.Model(&courseModels.Enrollment{}).
		Where("user_id = ? AND enrollable_type = ? AND enrollable_id = ?", userID, courseModels.EnrollableCourse, courseID).
		Count(&courseEnrollments).Error; err != nil {
		return err
	}
	if courseEnrollments > 0 {
		if _, err := e.EvaluateCompletion(ctx, userID, courseModels.EnrollableCourse, courseID); err != nil {
			errs = append(errs, err)
		}
	}

	var pathIDs []uint
	if err := db.Model(&courseModels.PathCourse{}).Where("course_id = ?", courseID).Pluck("path_id", &pathIDs).Error; err != nil {
		return errors.Join(append(errs, err)...)
	}
	if len(pathIDs) == 0 {
		return errors.Join(errs...)
	}

	var enrolledPaths []uint
	if err := db.Model(&courseModels.Enrollment{}).
		Where("user_id = ? AND enrollable_type = ? AND enrollable_id IN ?", userID, courseModels.EnrollablePath, pathIDs).
		Pluck("enrollable_id", &enrolledPaths).Error; err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, pathID := range enrolledPaths {
		if _, err := e.EvaluateCompletion(ctx, userID, courseModels.EnrollablePath, pathID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) checkCourse(ctx context.Context, userID, courseID uint) (*eligibility, error) {
	db := e.db.WithContext(ctx)

	var course courseModels.Course
	if err := db.Where("id = ? AND is_deleted = ?", courseID, false).First(&course).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("certification.checkCourse", "course not found")
		}
		return nil, err
	}

	check := &eligibility{
		title:          course.Title,
		enabled:        course.CertificateEnabled,
		validityMonths: course.CertificateValidityMonths,
	}

	var enrollment courseModels.Enrollment
	err := db.Where("user_id = ? AND enrollable_type = ? AND enrollable_id = ?", userID, courseModels.EnrollableCourse, courseID).
		First(&enrollment).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		check.fail("not enrolled")
	case err != nil:
		return nil, err
	case enrollment.Status != courseModels.EnrollmentCompleted:
		check.fail("%d of %d lessons completed", enrollment.CompletedLessons, enrollment.TotalLessons)
	}

	if course.FinalQuizID != nil {
		result, err := e.EffectiveResult(ctx, userID, *course.FinalQuizID)
		if err != nil {
			return nil, err
		}
		switch {
		case result == nil:
			check.fail("final quiz not attempted")
		case !result.Passed:
			check.fail("final quiz not passed (%.1f%%)", result.ScorePercent)
		default:
			score := result.ScorePercent
			check.score = &score
		}
	}
	return check, nil
}

func (e *Engine) checkPath(ctx context.Context, userID, pathID uint) (*eligibility, error) {
	db := e.db.WithContext(ctx)

	var path courseModels.Path
	if err := db.Where("id = ? AND is_deleted = ?", pathID, false).First(&path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("certification.checkPath", "path not found")
		}
		return nil, err
	}

	check := &eligibility{
		title:          path.Title,
		enabled:        path.CertificateEnabled,
		validityMonths: path.CertificateValidityMonths,
	}

	counted, err := CountedCourses(db, &path)
	if err != nil {
		return nil, err
	}
	if len(counted) == 0 {
		check.fail("path has no courses")
	}

	var scores []float64
	for _, courseID := range counted {
		courseCheck, err := e.checkCourse(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		if !courseCheck.eligible() {
			check.fail("course %q: %s", courseCheck.title, strings.Join(courseCheck.reasons, ", "))
			continue
		}
		if courseCheck.score == nil {
			continue
		}
		if *courseCheck.score < path.MinPassingScore {
			check.fail("course %q scored %.1f%%, below %.1f%%", courseCheck.title, *courseCheck.score, path.MinPassingScore)
			continue
		}
		scores = append(scores, *courseCheck.score)
	}

	if path.RequireFinalExam {
		if path.FinalExamQuizID == nil {
			check.fail("final exam not configured")
		} else {
			result, err := e.EffectiveResult(ctx, userID, *path.FinalExamQuizID)
			if err != nil {
				return nil, err
			}
			switch {
			case result == nil:
				check.fail("final exam not attempted")
			case !result.Passed:
				check.fail("final exam not passed (%.1f%%)", result.ScorePercent)
			case result.ScorePercent < path.MinPassingScore:
				check.fail("final exam scored %.1f%%, below %.1f%%", result.ScorePercent, path.MinPassingScore)
			default:
				scores = append(scores, result.ScorePercent)
			}
		}
	}

	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		avg := sum / float64(len(scores))
		check.score = &avg
	}
	return check, nil
}

// CountedCourses returns the member courses that count towards a path: all
// of them when the path requires all courses, otherwise the non-optional
// ones (all of them if every course is optional).
func CountedCourses(db *gorm.DB, path *courseModels.Path) ([]uint, error) {
	var members []courseModels.PathCourse
	if err := db.Where("path_id = ?", path.ID).Order("order_index asc, id asc").Find(&members).Error; err != nil {
		return nil, err
	}

	all := make([]uint, 0, len(members))
	required := make([]uint, 0, len(members))
	for _, m := range members {
		all = append(all, m.CourseID)
		if !m.IsOptional {
			required = append(required, m.CourseID)
		}
	}
	if path.RequireAllCourses || len(required) == 0 {
		return all, nil
	}
	return required, nil
}

func (e *Engine) issue(ctx context.Context, enrollment *courseModels.Enrollment, check *eligibility) (*courseModels.Certificate, bool, error) {
	const op = "certification.issue"

	issuedAt := e.now().UTC()
	var expiry *time.Time
	if check.validityMonths != nil && *check.validityMonths > 0 {
		exp := now.With(issuedAt).EndOfDay().AddDate(0, *check.validityMonths, 0)
		expiry = &exp
	}

	key := activeKey(enrollment.UserID, enrollment.EnrollableType, enrollment.EnrollableID)
	recipient := e.recipientName(ctx, enrollment.UserID)

	for i := 0; i < e.maxRetries; i++ {
		code, number, err := e.codes(issuedAt)
		if err != nil {
			return nil, false, fmt.Errorf("%s: generate codes: %w", op, err)
		}

		cert := courseModels.Certificate{
			UserID:            enrollment.UserID,
			RecipientName:     recipient,
			EnrollableType:    enrollment.EnrollableType,
			EnrollableID:      enrollment.EnrollableID,
			EnrollableTitle:   check.title,
			CertificateNumber: number,
			VerificationCode:  code,
			IssueDate:         issuedAt,
			ExpiryDate:        expiry,
			FinalScore:        check.score,
			Status:            courseModels.CertificateActive,
			ActiveKey:         &key,
		}

		var existing *courseModels.Certificate
		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cert)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				found, err := activeCertificate(tx, enrollment.UserID, enrollment.EnrollableType, enrollment.EnrollableID)
				if err != nil {
					return err
				}
				if found == nil {
					return errCodeCollision
				}
				existing = found
				return nil
			}
			return tx.Model(&courseModels.Enrollment{}).
				Where("id = ?", enrollment.ID).
				Update("certificate_id", cert.ID).Error
		})

		switch {
		case errors.Is(err, errCodeCollision):
			log.Printf("[CERTIFICATE] code collision for user %d (try %d), regenerating", enrollment.UserID, i+1)
			continue
		case err != nil:
			return nil, false, fmt.Errorf("%s: %w", op, err)
		case existing != nil:
			return existing, false, nil
		}
		return &cert, true, nil
	}
	return nil, false, fmt.Errorf("%s: no unique verification code after %d tries", op, e.maxRetries)
}

func (e *Engine) recipientName(ctx context.Context, userID uint) string {
	var user models.User
	if err := e.db.WithContext(ctx).First(&user, userID).Error; err == nil {
		if user.Name != "" {
			return user.Name
		}
		if user.Email != "" {
			return user.Email
		}
	}
	return fmt.Sprintf("Learner #%d", userID)
}

// settled reports a certificate that already holds the learner's slot.
func settled(cert *courseModels.Certificate) *Evaluation {
	if cert.Status == courseModels.CertificateRevoked {
		return &Evaluation{Reasons: []string{"certificate was revoked"}, Certificate: cert}
	}
	return &Evaluation{Eligible: true, FinalScore: cert.FinalScore, Certificate: cert}
}

func activeKey(userID uint, enrollableType string, enrollableID uint) string {
	return fmt.Sprintf("%d:%s:%d", userID, enrollableType, enrollableID)
}

func activeCertificate(db *gorm.DB, userID uint, enrollableType string, enrollableID uint) (*courseModels.Certificate, error) {
	var cert courseModels.Certificate
	res := db.Where("active_key = ?", activeKey(userID, enrollableType, enrollableID)).Limit(1).Find(&cert)
	if res.Error != nil || res.RowsAffected == 0 {
		return nil, res.Error
	}
	return &cert, nil
}

