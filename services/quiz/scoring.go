package quiz

import (
	"encoding/json"
)

// QuestionResult is the derived per-question outcome of a scored attempt.
type QuestionResult struct {
	QuestionID    uint            `json:"question_id"`
	Type          string          `json:"type"`
	Prompt        string          `json:"prompt"`
	Options       []string        `json:"options,omitempty"`
	Answer        json.RawMessage `json:"answer,omitempty"`
	IsCorrect     bool            `json:"is_correct"`
	PointsEarned  float64         `json:"points_earned"`
	Points        float64         `json:"points"`
	CorrectAnswer any             `json:"correct_answer"`
	Explanation   string          `json:"explanation,omitempty"`
}

type Outcome struct {
	PointsEarned   float64
	PointsPossible float64
	ScorePercent   float64
	Passed         bool
	Results        []QuestionResult
}

// Score grades every question against answers. Missing or unparsable
// answers are incorrect and earn nothing.
func Score(questions []Question, answers map[uint]json.RawMessage, passingScore float64) Outcome {
	var out Outcome
	out.Results = make([]QuestionResult, 0, len(questions))

	for _, q := range questions {
		b := q.base()
		pub := Public(q)
		res := QuestionResult{
			QuestionID:    b.ID,
			Type:          q.Kind(),
			Prompt:        b.Prompt,
			Options:       pub.Options,
			Points:        b.Points,
			CorrectAnswer: q.answerKey(),
			Explanation:   b.Explanation,
		}
		out.PointsPossible += b.Points

		if raw, ok := answers[b.ID]; ok {
			res.Answer = raw
			if a, err := q.ParseAnswer(raw); err == nil {
				res.IsCorrect, res.PointsEarned = q.Score(a)
			}
		}
		out.PointsEarned += res.PointsEarned
		out.Results = append(out.Results, res)
	}

	if out.PointsPossible > 0 {
		out.ScorePercent = out.PointsEarned / out.PointsPossible * 100
	}
	out.Passed = out.ScorePercent >= passingScore
	return out
}
