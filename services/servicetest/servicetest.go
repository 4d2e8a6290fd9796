// Package servicetest provides an in-memory database and catalog fixtures
// for service tests.
package servicetest

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"lms/database"
	"lms/models"
	courseModels "lms/models/course"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var userSeq atomic.Int64

// OpenDB returns a migrated in-memory sqlite database private to the test.
// The pool is limited to one connection, so code running inside a
// transaction must only use the transaction handle.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Clock is a settable time source.
type Clock struct {
	now atomic.Int64
}

func NewClock(t time.Time) *Clock {
	c := &Clock{}
	c.Set(t)
	return c
}

func (c *Clock) Now() time.Time { return time.Unix(0, c.now.Load()).UTC() }

func (c *Clock) Set(t time.Time) { c.now.Store(t.UnixNano()) }

func (c *Clock) Advance(d time.Duration) { c.now.Add(int64(d)) }

func JSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}

func CreateUser(t testing.TB, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{
		Name:  name,
		Email: fmt.Sprintf("learner%d@example.com", userSeq.Add(1)),
		Role:  models.RoleLearner,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateCourse stores course and its lessons, published and in order.
func CreateCourse(t testing.TB, db *gorm.DB, course courseModels.Course, lessons ...courseModels.Lesson) (courseModels.Course, []courseModels.Lesson) {
	t.Helper()
	if course.Title == "" {
		course.Title = "Course"
	}
	course.IsPublished = true
	require.NoError(t, db.Create(&course).Error)

	module := courseModels.Module{CourseID: course.ID, Title: "Module 1"}
	require.NoError(t, db.Create(&module).Error)

	for i := range lessons {
		lessons[i].CourseID = course.ID
		lessons[i].ModuleID = module.ID
		lessons[i].OrderIndex = i + 1
		lessons[i].IsPublished = true
		if lessons[i].Title == "" {
			lessons[i].Title = fmt.Sprintf("Lesson %d", i+1)
		}
		if lessons[i].ContentType == "" {
			lessons[i].ContentType = courseModels.LessonText
		}
		require.NoError(t, db.Create(&lessons[i]).Error)
	}
	return course, lessons
}

// SetFinalQuiz makes quizID the course's final requirement.
func SetFinalQuiz(t testing.TB, db *gorm.DB, course *courseModels.Course, quizID uint) {
	t.Helper()
	course.FinalQuizID = &quizID
	require.NoError(t, db.Model(course).Update("final_quiz_id", quizID).Error)
}

func CreateQuiz(t testing.TB, db *gorm.DB, quiz courseModels.Quiz, questions ...courseModels.QuizQuestion) (courseModels.Quiz, []courseModels.QuizQuestion) {
	t.Helper()
	if quiz.Title == "" {
		quiz.Title = "Quiz"
	}
	quiz.IsPublished = true
	require.NoError(t, db.Create(&quiz).Error)

	for i := range questions {
		questions[i].QuizID = quiz.ID
		questions[i].OrderIndex = i + 1
		if questions[i].Points == 0 {
			questions[i].Points = 1
		}
		require.NoError(t, db.Create(&questions[i]).Error)
	}
	return quiz, questions
}

func CreatePath(t testing.TB, db *gorm.DB, path courseModels.Path, courseIDs ...uint) courseModels.Path {
	t.Helper()
	if path.Title == "" {
		path.Title = "Path"
	}
	path.IsPublished = true
	require.NoError(t, db.Create(&path).Error)

	for i, id := range courseIDs {
		member := courseModels.PathCourse{PathID: path.ID, CourseID: id, OrderIndex: i + 1}
		require.NoError(t, db.Create(&member).Error)
	}
	return path
}

func CreateEnrollment(t testing.TB, db *gorm.DB, enrollment courseModels.Enrollment) courseModels.Enrollment {
	t.Helper()
	if enrollment.Status == "" {
		enrollment.Status = courseModels.EnrollmentEnrolled
	}
	require.NoError(t, db.Create(&enrollment).Error)
	return enrollment
}

// CreateSubmittedAttempt records a scored attempt as if it had been taken.
func CreateSubmittedAttempt(t testing.TB, db *gorm.DB, userID, quizID uint, score float64, passed bool, submittedAt time.Time) courseModels.QuizAttempt {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&courseModels.QuizAttempt{}).Where("user_id = ? AND quiz_id = ?", userID, quizID).Count(&count).Error)

	attempt := courseModels.QuizAttempt{
		UserID:        userID,
		QuizID:        quizID,
		AttemptNumber: int(count) + 1,
		Status:        courseModels.AttemptSubmitted,
		StartedAt:     submittedAt.Add(-time.Minute),
		ScorePercent:  &score,
		Passed:        &passed,
		SubmittedAt:   &submittedAt,
	}
	require.NoError(t, db.Create(&attempt).Error)
	return attempt
}

func MCQ(prompt string, options []string, correct int) courseModels.QuizQuestion {
	return courseModels.QuizQuestion{
		Type:         courseModels.QuestionMCQ,
		Prompt:       prompt,
		Options:      JSON(options),
		CorrectIndex: &correct,
		Explanation:  "see lesson",
	}
}

func MultipleSelect(prompt string, options []string, correct ...int) courseModels.QuizQuestion {
	return courseModels.QuizQuestion{
		Type:           courseModels.QuestionMultipleSelect,
		Prompt:         prompt,
		Options:        JSON(options),
		CorrectIndexes: JSON(correct),
	}
}

func TrueFalse(prompt string, correct bool) courseModels.QuizQuestion {
	return courseModels.QuizQuestion{
		Type:        courseModels.QuestionTrueFalse,
		Prompt:      prompt,
		CorrectBool: &correct,
	}
}

func ShortAnswer(prompt string, accepted ...string) courseModels.QuizQuestion {
	return courseModels.QuizQuestion{
		Type:            courseModels.QuestionShortAnswer,
		Prompt:          prompt,
		AcceptedAnswers: JSON(accepted),
	}
}

func Ptr[T any](v T) *T { return &v }
