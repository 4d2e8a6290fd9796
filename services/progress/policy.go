package progress

import (
	courseModels "lms/models/course"
)

// DefaultWatchThreshold applies to video lessons without a threshold of
// their own.
const DefaultWatchThreshold = 80.0

// WatchThreshold is the watched percent at which a video lesson completes:
// the lesson's own min_video_watch_percent, else fallback, else 80.
func WatchThreshold(lesson *courseModels.Lesson, fallback float64) float64 {
	if lesson.MinVideoWatchPercent != nil && validPercent(*lesson.MinVideoWatchPercent) {
		return *lesson.MinVideoWatchPercent
	}
	if validPercent(fallback) {
		return fallback
	}
	return DefaultWatchThreshold
}

func validPercent(p float64) bool { return p > 0 && p <= 100 }

// ClampDelta bounds a reported time-spent delta to [0, max].
func ClampDelta(delta, max int64) int64 {
	if delta < 0 {
		return 0
	}
	if max > 0 && delta > max {
		return max
	}
	return delta
}

// Resume tells a player where to start a lesson. Advisory is set when the
// lesson is already complete and the player may start from zero instead.
type Resume struct {
	LessonID       uint    `json:"lesson_id"`
	Position       float64 `json:"position"`
	WatchedPercent float64 `json:"watched_percent"`
	IsCompleted    bool    `json:"is_completed"`
	Advisory       bool    `json:"advisory"`
}

func resumeFrom(lessonID uint, lp *courseModels.LessonProgress) *Resume {
	if lp == nil {
		return &Resume{LessonID: lessonID}
	}
	return &Resume{
		LessonID:       lessonID,
		Position:       lp.VideoLastPosition,
		WatchedPercent: lp.WatchedPercent,
		IsCompleted:    lp.IsCompleted,
		Advisory:       lp.IsCompleted,
	}
}
