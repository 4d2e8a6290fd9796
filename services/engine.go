// Package services wires the progress tracker, quiz service and
// certification engine into one learning engine.
package services

import (
	"time"

	"lms/config"
	"lms/services/certification"
	"lms/services/progress"
	"lms/services/quiz"

	"gorm.io/gorm"
)

type Options struct {
	MaxTimeSpentDelta   int64
	DefaultWatchPercent float64
	Notifier            certification.Notifier
	Now                 func() time.Time
}

// OptionsFromConfig maps application configuration onto engine options.
func OptionsFromConfig(cfg *config.Config, notifier certification.Notifier) Options {
	return Options{
		MaxTimeSpentDelta:   int64(cfg.MaxTimeSpentDeltaSeconds),
		DefaultWatchPercent: cfg.DefaultMinWatchPercent,
		Notifier:            notifier,
	}
}

type Engine struct {
	Progress     *progress.Tracker
	Quizzes      *quiz.Service
	Certificates *certification.Engine
}

func NewEngine(db *gorm.DB, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	certs := certification.NewEngine(db, opts.Notifier, certification.Options{Now: opts.Now})
	tracker := progress.NewTracker(db, certs, progress.Options{
		MaxTimeSpentDelta:   opts.MaxTimeSpentDelta,
		DefaultWatchPercent: opts.DefaultWatchPercent,
		Now:                 opts.Now,
	})
	quizzes := quiz.NewService(db, tracker, certs, quiz.Options{Now: opts.Now})

	return &Engine{
		Progress:     tracker,
		Quizzes:      quizzes,
		Certificates: certs,
	}
}
