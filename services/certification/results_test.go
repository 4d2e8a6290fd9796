package certification

import (
	"context"
	"testing"
	"time"

	courseModels "lms/models/course"
	"lms/services/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attempt(id uint, status string, score float64, passed bool) courseModels.QuizAttempt {
	a := courseModels.QuizAttempt{Status: status, ScorePercent: &score, Passed: &passed}
	a.ID = id
	return a
}

func TestSelectResult(t *testing.T) {
	attempts := []courseModels.QuizAttempt{
		attempt(1, courseModels.AttemptSubmitted, 90, true),
		attempt(2, courseModels.AttemptSubmitted, 60, false),
		attempt(3, courseModels.AttemptExpired, 0, false),
	}
	attempts[2].ScorePercent = nil

	latest := SelectResult(attempts, courseModels.ScorePolicyLatest)
	require.NotNil(t, latest)
	assert.Equal(t, uint(2), latest.AttemptID)
	assert.False(t, latest.Passed)

	best := SelectResult(attempts, courseModels.ScorePolicyBest)
	require.NotNil(t, best)
	assert.Equal(t, uint(1), best.AttemptID)
	assert.True(t, best.Passed)

	assert.Equal(t, uint(2), SelectResult(attempts, "").AttemptID, "unknown policy behaves as latest")
	assert.Nil(t, SelectResult(attempts[2:], courseModels.ScorePolicyBest))
	assert.Nil(t, SelectResult(nil, courseModels.ScorePolicyLatest))
}

func TestSelectResultBestTieKeepsEarliest(t *testing.T) {
	attempts := []courseModels.QuizAttempt{
		attempt(4, courseModels.AttemptSubmitted, 80, true),
		attempt(5, courseModels.AttemptSubmitted, 80, true),
	}
	assert.Equal(t, uint(4), SelectResult(attempts, courseModels.ScorePolicyBest).AttemptID)
}

func TestEffectiveResultUsesQuizPolicy(t *testing.T) {
	db := servicetest.OpenDB(t)
	engine := NewEngine(db, nil, Options{})
	user := servicetest.CreateUser(t, db, "Barbara")
	ctx := context.Background()

	latestQuiz, _ := servicetest.CreateQuiz(t, db, courseModels.Quiz{PassingScore: 70, AllowRetake: true})
	bestQuiz, _ := servicetest.CreateQuiz(t, db, courseModels.Quiz{PassingScore: 70, AllowRetake: true, RetakeScorePolicy: courseModels.ScorePolicyBest})

	for _, quizID := range []uint{latestQuiz.ID, bestQuiz.ID} {
		servicetest.CreateSubmittedAttempt(t, db, user.ID, quizID, 85, true, t0)
		servicetest.CreateSubmittedAttempt(t, db, user.ID, quizID, 40, false, t0.Add(time.Hour))
	}

	res, err := engine.EffectiveResult(ctx, user.ID, latestQuiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, res.ScorePercent)
	assert.False(t, res.Passed)

	res, err = engine.EffectiveResult(ctx, user.ID, bestQuiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, res.ScorePercent)
	assert.True(t, res.Passed)

	res, err = engine.EffectiveResult(ctx, user.ID+100, bestQuiz.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestRandomCodesAndNormalize(t *testing.T) {
	code, number, err := RandomCodes(t0)
	require.NoError(t, err)
	assert.Len(t, code, 26)
	assert.Regexp(t, `^CERT-20260310-[A-Z2-7]{8}$`, number)
	assert.Equal(t, code, NormalizeCode(" "+code[:5]+"-"+code[5:]+" "))

	other, _, err := RandomCodes(t0)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}
