package progress

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrSessionClosed = errors.New("reporting session closed")

// Report is one buffered progress snapshot for a lesson view.
type Report struct {
	EnrollmentID   uint    `json:"enrollment_id"`
	LessonID       uint    `json:"lesson_id"`
	Position       float64 `json:"position"`
	WatchedPercent float64 `json:"watched_percent"`
	TimeSpentDelta int64   `json:"time_spent_delta"`
}

// Reporter delivers a report to the progress tracker, in process or over
// the network.
type Reporter interface {
	ReportProgress(ctx context.Context, r Report) error
}

// ReportingSession batches the progress of one lesson view. Updates are
// buffered and sent at most once per interval; Close sends whatever is
// still buffered. Always pair OpenSession with a deferred Close, or use
// WithSession.
type ReportingSession struct {
	mu       sync.Mutex
	reporter Reporter
	interval time.Duration
	now      func() time.Time

	enrollmentID uint
	lessonID     uint

	position float64
	watched  float64
	dirty    bool
	lastSent time.Time
	mark     time.Time // start of the time not yet reported
	closed   bool
}

type SessionOption func(*ReportingSession)

// WithClock replaces the session's time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *ReportingSession) { s.now = now }
}

func OpenSession(reporter Reporter, enrollmentID, lessonID uint, interval time.Duration, opts ...SessionOption) *ReportingSession {
	s := &ReportingSession{
		reporter:     reporter,
		interval:     interval,
		now:          time.Now,
		enrollmentID: enrollmentID,
		lessonID:     lessonID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mark = s.now()
	s.lastSent = s.mark
	return s
}

// Update buffers the player's state and sends it when the interval since
// the last send has elapsed.
func (s *ReportingSession) Update(ctx context.Context, position, watchedPercent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.position = max(s.position, position)
	s.watched = max(s.watched, watchedPercent)
	s.dirty = true

	if s.now().Sub(s.lastSent) < s.interval {
		return nil
	}
	return s.sendLocked(ctx)
}

// Flush sends the buffered state now, if there is any.
func (s *ReportingSession) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	return s.sendLocked(ctx)
}

// Close flushes the buffered state and ends the session. Further calls are
// no-ops.
func (s *ReportingSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.sendLocked(ctx)
}

func (s *ReportingSession) sendLocked(ctx context.Context) error {
	if !s.dirty {
		return nil
	}

	now := s.now()
	elapsed := int64(now.Sub(s.mark) / time.Second)
	err := s.reporter.ReportProgress(ctx, Report{
		EnrollmentID:   s.enrollmentID,
		LessonID:       s.lessonID,
		Position:       s.position,
		WatchedPercent: s.watched,
		TimeSpentDelta: max(elapsed, 0),
	})
	if err != nil {
		// stays dirty; the next send retries
		return err
	}

	s.dirty = false
	s.lastSent = now
	s.mark = s.mark.Add(time.Duration(elapsed) * time.Second)
	return nil
}

// WithSession runs fn with an open reporting session and flushes it on every
// exit path, including panics and a cancelled ctx.
func WithSession(ctx context.Context, reporter Reporter, enrollmentID, lessonID uint, interval time.Duration, fn func(*ReportingSession) error, opts ...SessionOption) (err error) {
	s := OpenSession(reporter, enrollmentID, lessonID, interval, opts...)
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(s)
}

// TrackerReporter reports straight into a Tracker on behalf of one learner.
type TrackerReporter struct {
	Tracker *Tracker
	UserID  uint
}

func (r TrackerReporter) ReportProgress(ctx context.Context, rep Report) error {
	_, err := r.Tracker.RecordLessonEvent(ctx, r.UserID, rep.EnrollmentID, rep.LessonID, VideoProgress{
		Position:       rep.Position,
		WatchedPercent: rep.WatchedPercent,
		TimeSpentDelta: rep.TimeSpentDelta,
	})
	return err
}
