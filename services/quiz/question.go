package quiz

import (
	"encoding/json"
	"fmt"
	"strings"

	courseModels "lms/models/course"
)

// Question is one question of an attempt snapshot. The set of kinds is
// closed: *MCQ, *MultipleSelect, *TrueFalse and *ShortAnswer. Each kind
// parses its own answer shape and scores it.
type Question interface {
	base() *questionBase
	Kind() string
	// ParseAnswer validates a learner's raw JSON answer.
	ParseAnswer(raw json.RawMessage) (Answer, error)
	// Score reports whether a is fully correct and the points it earns.
	Score(a Answer) (correct bool, points float64)
	answerKey() any
}

// Answer is a parsed learner answer: IndexAnswer, IndexSetAnswer,
// BoolAnswer or TextAnswer.
type Answer interface {
	answer()
}

type IndexAnswer int
type IndexSetAnswer []int
type BoolAnswer bool
type TextAnswer string

func (IndexAnswer) answer()    {}
func (IndexSetAnswer) answer() {}
func (BoolAnswer) answer()     {}
func (TextAnswer) answer()     {}

type questionBase struct {
	ID          uint
	Prompt      string
	Points      float64
	Explanation string
}

func (b *questionBase) base() *questionBase { return b }

type MCQ struct {
	questionBase
	Options []string
	Correct int
}

type MultipleSelect struct {
	questionBase
	Options       []string
	Correct       []int
	PartialCredit bool
}

type TrueFalse struct {
	questionBase
	Correct bool
}

type ShortAnswer struct {
	questionBase
	Accepted []string
}

func (*MCQ) Kind() string            { return courseModels.QuestionMCQ }
func (*MultipleSelect) Kind() string { return courseModels.QuestionMultipleSelect }
func (*TrueFalse) Kind() string      { return courseModels.QuestionTrueFalse }
func (*ShortAnswer) Kind() string    { return courseModels.QuestionShortAnswer }

func (q *MCQ) ParseAnswer(raw json.RawMessage) (Answer, error) {
	var idx int
	if err := json.Unmarshal(raw, &idx); err != nil || isNull(raw) {
		return nil, fmt.Errorf("answer must be an option index")
	}
	if idx < 0 || idx >= len(q.Options) {
		return nil, fmt.Errorf("option %d out of range", idx)
	}
	return IndexAnswer(idx), nil
}

func (q *MultipleSelect) ParseAnswer(raw json.RawMessage) (Answer, error) {
	var idx []int
	if err := json.Unmarshal(raw, &idx); err != nil || isNull(raw) {
		return nil, fmt.Errorf("answer must be a list of option indexes")
	}
	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(q.Options) {
			return nil, fmt.Errorf("option %d out of range", i)
		}
		if seen[i] {
			return nil, fmt.Errorf("option %d selected twice", i)
		}
		seen[i] = true
	}
	return IndexSetAnswer(idx), nil
}

func (q *TrueFalse) ParseAnswer(raw json.RawMessage) (Answer, error) {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil || isNull(raw) {
		return nil, fmt.Errorf("answer must be true or false")
	}
	return BoolAnswer(v), nil
}

func (q *ShortAnswer) ParseAnswer(raw json.RawMessage) (Answer, error) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || isNull(raw) {
		return nil, fmt.Errorf("answer must be text")
	}
	if len(v) > 1000 {
		return nil, fmt.Errorf("answer is too long")
	}
	return TextAnswer(v), nil
}

func (q *MCQ) Score(a Answer) (bool, float64) {
	idx, ok := a.(IndexAnswer)
	if !ok || int(idx) != q.Correct {
		return false, 0
	}
	return true, q.Points
}

// Score requires the selection to equal the correct set. With partial credit
// a near miss earns points * max(0, hits - wrong) / len(correct) but is
// still not correct.
func (q *MultipleSelect) Score(a Answer) (bool, float64) {
	sel, ok := a.(IndexSetAnswer)
	if !ok || len(q.Correct) == 0 {
		return false, 0
	}

	correct := make(map[int]bool, len(q.Correct))
	for _, i := range q.Correct {
		correct[i] = true
	}
	hits, wrong := 0, 0
	for _, i := range sel {
		if correct[i] {
			hits++
		} else {
			wrong++
		}
	}

	if wrong == 0 && hits == len(correct) {
		return true, q.Points
	}
	if !q.PartialCredit || hits <= wrong {
		return false, 0
	}
	return false, q.Points * float64(hits-wrong) / float64(len(correct))
}

func (q *TrueFalse) Score(a Answer) (bool, float64) {
	v, ok := a.(BoolAnswer)
	if !ok || bool(v) != q.Correct {
		return false, 0
	}
	return true, q.Points
}

func (q *ShortAnswer) Score(a Answer) (bool, float64) {
	v, ok := a.(TextAnswer)
	if !ok {
		return false, 0
	}
	given := normalizeText(string(v))
	if given == "" {
		return false, 0
	}
	for _, accepted := range q.Accepted {
		if strings.EqualFold(given, normalizeText(accepted)) {
			return true, q.Points
		}
	}
	return false, 0
}

func (q *MCQ) answerKey() any            { return q.Correct }
func (q *MultipleSelect) answerKey() any { return q.Correct }
func (q *TrueFalse) answerKey() any      { return q.Correct }
func (q *ShortAnswer) answerKey() any    { return q.Accepted }

// normalizeText trims and collapses inner whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// PublicQuestion is what a learner sees while an attempt is open: no answer
// key and no explanation.
type PublicQuestion struct {
	ID      uint     `json:"id"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Points  float64  `json:"points"`
}

func Public(q Question) PublicQuestion {
	b := q.base()
	pq := PublicQuestion{ID: b.ID, Type: q.Kind(), Prompt: b.Prompt, Points: b.Points}
	switch q := q.(type) {
	case *MCQ:
		pq.Options = q.Options
	case *MultipleSelect:
		pq.Options = q.Options
	case *TrueFalse:
		pq.Options = []string{"true", "false"}
	}
	return pq
}
