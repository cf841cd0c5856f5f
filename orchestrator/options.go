package orchestrator

import (
	"time"

	"github.com/caffeineduck/playpen/detect"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single run, initialization included.
const DefaultTimeout = 30 * time.Second

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout sets the per-run deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegistry sets the optional libraries known to the detector.
func WithRegistry(r detect.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = r
	}
}

// WithDetector replaces the library detector.
func WithDetector(d Detector) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.detector = d
		}
	}
}

// WithClearOnRun clears the console at the start of every run.
func WithClearOnRun() Option {
	return func(o *Orchestrator) {
		o.clear = true
	}
}
