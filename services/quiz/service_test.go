package quiz

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"lms/apperr"
	courseModels "lms/models/course"
	"lms/services/certification"
	"lms/services/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu            sync.Mutex
	lessonQuizzes []uint
	courses       []uint
	paths         []uint
}

func (r *recorder) CompleteQuizLessons(_ context.Context, _ uint, quizID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lessonQuizzes = append(r.lessonQuizzes, quizID)
	return nil
}

func (r *recorder) EvaluateCompletion(_ context.Context, _ uint, _ string, id uint) (*certification.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, id)
	return &certification.Evaluation{}, nil
}

func (r *recorder) EvaluateCourseAndPaths(_ context.Context, _ uint, courseID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses = append(r.courses, courseID)
	return nil
}

type fixture struct {
	db      *gorm.DB
	clock   *servicetest.Clock
	hooks   *recorder
	service *Service
	userID  uint
}

func newFixture(t *testing.T) *fixture {
	db := servicetest.OpenDB(t)
	f := &fixture{db: db, clock: servicetest.NewClock(t0), hooks: &recorder{}}
	f.service = NewService(db, f.hooks, f.hooks, Options{Now: f.clock.Now})
	f.userID = servicetest.CreateUser(t, db, "Edsger").ID
	return f
}

// twoQuestionQuiz is the MCQ scenario: passing score 70, two 1-point
// questions, correct answers 1 and 0.
func (f *fixture) twoQuestionQuiz(t *testing.T, quiz courseModels.Quiz) (courseModels.Quiz, []courseModels.QuizQuestion) {
	if quiz.PassingScore == 0 {
		quiz.PassingScore = 70
	}
	return servicetest.CreateQuiz(t, f.db, quiz,
		servicetest.MCQ("first", []string{"a", "b", "c"}, 1),
		servicetest.MCQ("second", []string{"a", "b"}, 0),
	)
}

func raw(v string) json.RawMessage { return json.RawMessage(v) }

func TestMCQScenarioScoresFullMarks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{})

	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, courseModels.AttemptInProgress, started.Attempt.Status)
	assert.Equal(t, 1, started.Attempt.AttemptNumber)
	require.Len(t, started.Questions, 2)
	assert.Nil(t, started.Attempt.Deadline)

	_, err = f.service.Answer(ctx, f.userID, started.Attempt.ID, questions[0].ID, raw(`1`))
	require.NoError(t, err)

	view, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{questions[1].ID: raw(`0`)})
	require.NoError(t, err)

	a := view.Attempt
	assert.Equal(t, courseModels.AttemptSubmitted, a.Status)
	require.NotNil(t, a.ScorePercent)
	assert.Equal(t, 100.0, *a.ScorePercent)
	require.NotNil(t, a.Passed)
	assert.True(t, *a.Passed)
	assert.False(t, a.AutoSubmitted)
	assert.Nil(t, a.OpenKey)
	require.Len(t, view.Review, 2)
	assert.Equal(t, 1, view.Review[0].CorrectAnswer)

	assert.Equal(t, []uint{quiz.ID}, f.hooks.lessonQuizzes)
}

func TestStartResponseWithholdsAnswers(t *testing.T) {
	f := newFixture(t)
	quiz, _ := f.twoQuestionQuiz(t, courseModels.Quiz{})

	started, err := f.service.Start(context.Background(), f.userID, quiz.ID)
	require.NoError(t, err)

	b, err := json.Marshal(started)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "correct")
	assert.NotContains(t, string(b), "see lesson")
	assert.NotContains(t, string(b), "question_snapshot")
}

func TestAnswerLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	_, err = f.service.Answer(ctx, f.userID, started.Attempt.ID, questions[0].ID, raw(`2`))
	require.NoError(t, err)
	view, err := f.service.Answer(ctx, f.userID, started.Attempt.ID, questions[0].ID, raw(`1`))
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(view.Answers[questions[0].ID]))

	var count int64
	require.NoError(t, f.db.Model(&courseModels.QuizAttemptAnswer{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAnswerErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = f.service.Answer(ctx, f.userID, id, questions[0].ID, raw(`"b"`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.service.Answer(ctx, f.userID, id, questions[0].ID, raw(`9`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.service.Answer(ctx, f.userID, id, 9999, raw(`0`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.service.Answer(ctx, f.userID+1, id, questions[0].ID, raw(`0`))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.service.Answer(ctx, f.userID, 9999, questions[0].ID, raw(`0`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.service.Submit(ctx, f.userID, id, map[uint]json.RawMessage{questions[1].ID: raw(`true`)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.service.Submit(ctx, f.userID, id, nil)
	require.NoError(t, err)
	_, err = f.service.Answer(ctx, f.userID, id, questions[0].ID, raw(`1`))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, "attempt already completed", apperr.Message(err))
}

func TestSubmitTwiceReturnsSameResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	first, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{questions[0].ID: raw(`1`)})
	require.NoError(t, err)

	second, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{questions[1].ID: raw(`0`)})
	require.NoError(t, err)

	assert.Equal(t, 50.0, *first.Attempt.ScorePercent)
	assert.Equal(t, *first.Attempt.ScorePercent, *second.Attempt.ScorePercent)
	assert.True(t, first.Attempt.SubmittedAt.Equal(*second.Attempt.SubmittedAt))
	assert.NotContains(t, second.Answers, questions[1].ID, "late responses are not merged")
}

func TestConcurrentSubmitsScoreOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	scores := make([]float64, 6)
	for i := range scores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{
				questions[0].ID: raw(`1`),
				questions[1].ID: raw(`0`),
			})
			if assert.NoError(t, err) {
				scores[i] = *view.Attempt.ScorePercent
			}
		}(i)
	}
	wg.Wait()

	for _, s := range scores {
		assert.Equal(t, 100.0, s)
	}
	var submitted int64
	require.NoError(t, f.db.Model(&courseModels.QuizAttempt{}).Where("status = ?", courseModels.AttemptSubmitted).Count(&submitted).Error)
	assert.EqualValues(t, 1, submitted)
}

func TestConcurrentAnswersKeepOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	values := []string{`0`, `1`, `2`, `1`, `0`, `2`, `1`, `0`}
	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			_, err := f.service.Answer(ctx, f.userID, started.Attempt.ID, questions[0].ID, raw(v))
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	var answers []courseModels.QuizAttemptAnswer
	require.NoError(t, f.db.Where("attempt_id = ?", started.Attempt.ID).Find(&answers).Error)
	require.Len(t, answers, 1)
	assert.Contains(t, []string{`0`, `1`, `2`}, string(answers[0].Value))

	view, err := f.service.Get(ctx, f.userID, started.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, courseModels.AttemptInProgress, view.Attempt.Status)
	assert.JSONEq(t, string(answers[0].Value), string(view.Answers[questions[0].ID]))
}

func TestAutoSubmitAfterTimeLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{TimeLimitMinutes: servicetest.Ptr(1)})

	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	require.NotNil(t, started.Attempt.TimeLimitSeconds)
	assert.Equal(t, 60, *started.Attempt.TimeLimitSeconds)
	id := started.Attempt.ID

	f.clock.Advance(10 * time.Second)
	view, err := f.service.Answer(ctx, f.userID, id, questions[0].ID, raw(`1`))
	require.NoError(t, err)
	require.NotNil(t, view.RemainingSeconds)
	assert.EqualValues(t, 50, *view.RemainingSeconds)

	f.clock.Set(t0.Add(61 * time.Second))
	view, err = f.service.Get(ctx, f.userID, id)
	require.NoError(t, err)

	a := view.Attempt
	assert.Equal(t, courseModels.AttemptSubmitted, a.Status)
	assert.True(t, a.AutoSubmitted)
	assert.Equal(t, 50.0, *a.ScorePercent)
	assert.False(t, *a.Passed)

	_, err = f.service.Answer(ctx, f.userID, id, questions[1].ID, raw(`0`))
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	again, err := f.service.Submit(ctx, f.userID, id, map[uint]json.RawMessage{questions[1].ID: raw(`0`)})
	require.NoError(t, err)
	assert.Equal(t, courseModels.AttemptSubmitted, again.Attempt.Status)
	assert.Equal(t, 50.0, *again.Attempt.ScorePercent)
}

func TestLateManualSubmitUsesAnswersOnRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{TimeLimitMinutes: servicetest.Ptr(1)})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	_, err = f.service.Answer(ctx, f.userID, started.Attempt.ID, questions[0].ID, raw(`1`))
	require.NoError(t, err)

	f.clock.Advance(60 * time.Second)
	view, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{questions[1].ID: raw(`0`)})
	require.NoError(t, err)
	assert.True(t, view.Attempt.AutoSubmitted)
	assert.Equal(t, 50.0, *view.Attempt.ScorePercent)
}

func TestExpireOnTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{TimeLimitMinutes: servicetest.Ptr(1), ExpireOnTimeout: true, AllowRetake: true})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	_, err = f.service.Answer(ctx, f.userID, started.Attempt.ID, questions[0].ID, raw(`1`))
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	// starting again settles the overdue attempt first
	next, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Attempt.AttemptNumber)

	view, err := f.service.Get(ctx, f.userID, started.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, courseModels.AttemptExpired, view.Attempt.Status)
	assert.Nil(t, view.Attempt.ScorePercent)
	require.NotNil(t, view.Attempt.Passed)
	assert.False(t, *view.Attempt.Passed)
	assert.Empty(t, f.hooks.lessonQuizzes)
}

func TestRetakeBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, _ := f.twoQuestionQuiz(t, courseModels.Quiz{})

	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	_, err = f.service.Start(ctx, f.userID, quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict, "attempt still open")

	_, err = f.service.Submit(ctx, f.userID, started.Attempt.ID, nil)
	require.NoError(t, err)

	_, err = f.service.Start(ctx, f.userID, quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "retakes are not allowed for this quiz", apperr.Message(err))
}

func TestRetakeAllowedUpToMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, _ := f.twoQuestionQuiz(t, courseModels.Quiz{AllowRetake: true, MaxAttempts: servicetest.Ptr(2)})

	for i := 1; i <= 2; i++ {
		started, err := f.service.Start(ctx, f.userID, quiz.ID)
		require.NoError(t, err)
		assert.Equal(t, i, started.Attempt.AttemptNumber)
		_, err = f.service.Submit(ctx, f.userID, started.Attempt.ID, nil)
		require.NoError(t, err)
	}

	_, err := f.service.Start(ctx, f.userID, quiz.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestConcurrentStartsOpenOneAttempt(t *testing.T) {
	f := newFixture(t)
	quiz, _ := f.twoQuestionQuiz(t, courseModels.Quiz{AllowRetake: true})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Start(context.Background(), f.userID, quiz.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, apperr.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, conflicts)
}

func TestSnapshotIsolatesAttemptFromQuizEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{TimeLimitMinutes: servicetest.Ptr(5)})
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&questions[0]).Update("correct_index", 2).Error)
	require.NoError(t, f.db.Model(&quiz).Updates(map[string]interface{}{"passing_score": 100, "time_limit_minutes": 1}).Error)

	f.clock.Advance(2 * time.Minute)
	view, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{
		questions[0].ID: raw(`1`),
	})
	require.NoError(t, err)
	assert.False(t, view.Attempt.AutoSubmitted)
	assert.Equal(t, 50.0, *view.Attempt.ScorePercent)
	assert.Equal(t, 70.0, view.Attempt.PassingScore)
}

func TestPartialCreditQuiz(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, questions := servicetest.CreateQuiz(t, f.db, courseModels.Quiz{PassingScore: 50, PartialCredit: true},
		servicetest.MultipleSelect("pick", []string{"a", "b", "c"}, 0, 2),
	)
	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)

	view, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{questions[0].ID: raw(`[0, 1, 2]`)})
	require.NoError(t, err)
	assert.Equal(t, 50.0, *view.Attempt.ScorePercent)
	assert.True(t, *view.Attempt.Passed)
	assert.False(t, view.Review[0].IsCorrect)
	assert.Equal(t, 0.5, view.Review[0].PointsEarned)
}

func TestPassedFinalQuizTriggersCertification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course, _ := servicetest.CreateCourse(t, f.db, courseModels.Course{}, courseModels.Lesson{})
	quiz, questions := f.twoQuestionQuiz(t, courseModels.Quiz{CourseID: &course.ID})
	servicetest.SetFinalQuiz(t, f.db, &course, quiz.ID)

	path := servicetest.CreatePath(t, f.db, courseModels.Path{FinalExamQuizID: &quiz.ID}, course.ID)
	servicetest.CreateEnrollment(t, f.db, courseModels.Enrollment{UserID: f.userID, EnrollableType: courseModels.EnrollablePath, EnrollableID: path.ID})

	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, f.userID, started.Attempt.ID, map[uint]json.RawMessage{
		questions[0].ID: raw(`1`),
		questions[1].ID: raw(`0`),
	})
	require.NoError(t, err)

	assert.Equal(t, []uint{course.ID}, f.hooks.courses)
	assert.Equal(t, []uint{path.ID}, f.hooks.paths)
}

func TestFailedAttemptSkipsHooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quiz, _ := f.twoQuestionQuiz(t, courseModels.Quiz{})

	started, err := f.service.Start(ctx, f.userID, quiz.ID)
	require.NoError(t, err)
	view, err := f.service.Submit(ctx, f.userID, started.Attempt.ID, nil)
	require.NoError(t, err)

	assert.Zero(t, *view.Attempt.ScorePercent)
	assert.False(t, *view.Attempt.Passed)
	assert.Empty(t, f.hooks.lessonQuizzes)
	assert.Empty(t, f.hooks.courses)
}

func TestSettleOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	timed, _ := f.twoQuestionQuiz(t, courseModels.Quiz{TimeLimitMinutes: servicetest.Ptr(1)})
	untimed, _ := f.twoQuestionQuiz(t, courseModels.Quiz{})
	other := servicetest.CreateUser(t, f.db, "Barbara")

	for _, userID := range []uint{f.userID, other.ID} {
		_, err := f.service.Start(ctx, userID, timed.ID)
		require.NoError(t, err)
	}
	_, err := f.service.Start(ctx, f.userID, untimed.ID)
	require.NoError(t, err)

	n, err := f.service.SettleOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Minute)
	n, err = f.service.SettleOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var open int64
	require.NoError(t, f.db.Model(&courseModels.QuizAttempt{}).Where("status = ?", courseModels.AttemptInProgress).Count(&open).Error)
	assert.EqualValues(t, 1, open)
}

func TestStartErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.userID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	empty, _ := servicetest.CreateQuiz(t, f.db, courseModels.Quiz{})
	_, err = f.service.Start(ctx, f.userID, empty.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}
