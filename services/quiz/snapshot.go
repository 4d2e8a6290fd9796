package quiz

import (
	"encoding/json"
	"fmt"

	courseModels "lms/models/course"

	"gorm.io/datatypes"
)

// snapshotQuestion is the stored form of a question copied into an attempt
// when it starts.
type snapshotQuestion struct {
	ID             uint     `json:"id"`
	Type           string   `json:"type"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options,omitempty"`
	Points         float64  `json:"points"`
	Explanation    string   `json:"explanation,omitempty"`
	CorrectIndex   *int     `json:"correct_index,omitempty"`
	CorrectIndexes []int    `json:"correct_indexes,omitempty"`
	CorrectBool    *bool    `json:"correct_bool,omitempty"`
	Accepted       []string `json:"accepted,omitempty"`
}

func (s snapshotQuestion) question(partialCredit bool) (Question, error) {
	base := questionBase{ID: s.ID, Prompt: s.Prompt, Points: s.Points, Explanation: s.Explanation}
	if base.Points <= 0 {
		base.Points = 1
	}

	switch s.Type {
	case courseModels.QuestionMCQ:
		if s.CorrectIndex == nil || *s.CorrectIndex < 0 || *s.CorrectIndex >= len(s.Options) {
			return nil, fmt.Errorf("question %d: correct option missing or out of range", s.ID)
		}
		return &MCQ{questionBase: base, Options: s.Options, Correct: *s.CorrectIndex}, nil
	case courseModels.QuestionMultipleSelect:
		if len(s.CorrectIndexes) == 0 {
			return nil, fmt.Errorf("question %d: no correct options", s.ID)
		}
		for _, i := range s.CorrectIndexes {
			if i < 0 || i >= len(s.Options) {
				return nil, fmt.Errorf("question %d: correct option %d out of range", s.ID, i)
			}
		}
		return &MultipleSelect{questionBase: base, Options: s.Options, Correct: s.CorrectIndexes, PartialCredit: partialCredit}, nil
	case courseModels.QuestionTrueFalse:
		if s.CorrectBool == nil {
			return nil, fmt.Errorf("question %d: missing correct value", s.ID)
		}
		return &TrueFalse{questionBase: base, Correct: *s.CorrectBool}, nil
	case courseModels.QuestionShortAnswer:
		if len(s.Accepted) == 0 {
			return nil, fmt.Errorf("question %d: no accepted answers", s.ID)
		}
		return &ShortAnswer{questionBase: base, Accepted: s.Accepted}, nil
	default:
		return nil, fmt.Errorf("question %d: unknown type %q", s.ID, s.Type)
	}
}

func toSnapshot(q Question) snapshotQuestion {
	b := q.base()
	s := snapshotQuestion{ID: b.ID, Type: q.Kind(), Prompt: b.Prompt, Points: b.Points, Explanation: b.Explanation}
	switch q := q.(type) {
	case *MCQ:
		correct := q.Correct
		s.Options, s.CorrectIndex = q.Options, &correct
	case *MultipleSelect:
		s.Options, s.CorrectIndexes = q.Options, q.Correct
	case *TrueFalse:
		correct := q.Correct
		s.CorrectBool = &correct
	case *ShortAnswer:
		s.Accepted = q.Accepted
	}
	return s
}

// FromModel converts a catalog question into its kind, validating the
// answer key.
func FromModel(row *courseModels.QuizQuestion, partialCredit bool) (Question, error) {
	s := snapshotQuestion{
		ID:           row.ID,
		Type:         row.Type,
		Prompt:       row.Prompt,
		Points:       row.Points,
		Explanation:  row.Explanation,
		CorrectIndex: row.CorrectIndex,
		CorrectBool:  row.CorrectBool,
	}
	if err := decodeList(row.Options, &s.Options); err != nil {
		return nil, fmt.Errorf("question %d options: %w", row.ID, err)
	}
	if err := decodeList(row.CorrectIndexes, &s.CorrectIndexes); err != nil {
		return nil, fmt.Errorf("question %d correct indexes: %w", row.ID, err)
	}
	if err := decodeList(row.AcceptedAnswers, &s.Accepted); err != nil {
		return nil, fmt.Errorf("question %d accepted answers: %w", row.ID, err)
	}
	return s.question(partialCredit)
}

func decodeList(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 || isNull(json.RawMessage(raw)) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func buildSnapshot(rows []courseModels.QuizQuestion, partialCredit bool) ([]Question, datatypes.JSON, error) {
	questions := make([]Question, 0, len(rows))
	stored := make([]snapshotQuestion, 0, len(rows))
	for i := range rows {
		q, err := FromModel(&rows[i], partialCredit)
		if err != nil {
			return nil, nil, err
		}
		questions = append(questions, q)
		stored = append(stored, toSnapshot(q))
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, nil, err
	}
	return questions, datatypes.JSON(raw), nil
}

func decodeSnapshot(raw datatypes.JSON, partialCredit bool) ([]Question, error) {
	var stored []snapshotQuestion
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode question snapshot: %w", err)
	}
	questions := make([]Question, 0, len(stored))
	for _, s := range stored {
		q, err := s.question(partialCredit)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}
