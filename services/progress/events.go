package progress

import (
	"math"

	"lms/apperr"
)

// Event is a lesson interaction. The set of events is closed: VideoProgress,
// ExplicitComplete and the internal quizPassed.
type Event interface {
	lessonEvent()
}

// VideoProgress is a periodic report from a video player. Position is in
// seconds, WatchedPercent is the client's high-water mark for the lesson and
// TimeSpentDelta the seconds watched since the previous report.
type VideoProgress struct {
	Position       float64
	WatchedPercent float64
	TimeSpentDelta int64
}

// ExplicitComplete is the learner marking a lesson done. Lessons gated by a
// quiz reject it.
type ExplicitComplete struct {
	TimeSpentDelta int64
}

// quizPassed completes a gated lesson once its quiz has a passing attempt.
type quizPassed struct{}

func (VideoProgress) lessonEvent()    {}
func (ExplicitComplete) lessonEvent() {}
func (quizPassed) lessonEvent()       {}

func validateEvent(op string, ev Event) error {
	switch ev := ev.(type) {
	case VideoProgress:
		if math.IsNaN(ev.Position) || math.IsInf(ev.Position, 0) || ev.Position < 0 {
			return apperr.Validation(op, "position must be a non-negative number of seconds")
		}
		if math.IsNaN(ev.WatchedPercent) || ev.WatchedPercent < 0 || ev.WatchedPercent > 100 {
			return apperr.Validation(op, "watched percent must be between 0 and 100")
		}
		return nil
	case ExplicitComplete, quizPassed:
		return nil
	default:
		return apperr.Validation(op, "unsupported lesson event")
	}
}

func timeSpentDelta(ev Event) int64 {
	switch ev := ev.(type) {
	case VideoProgress:
		return ev.TimeSpentDelta
	case ExplicitComplete:
		return ev.TimeSpentDelta
	}
	return 0
}
