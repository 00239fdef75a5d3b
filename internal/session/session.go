// SPDX-License-Identifier: MIT

// Package session orchestrates one recording run: resolve the streams
// of a country, record them on a bounded worker pool and report the
// results.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/tonband/aircheck/internal/catalog"
	"github.com/tonband/aircheck/internal/config"
	"github.com/tonband/aircheck/internal/fsutil"
	xglog "github.com/tonband/aircheck/internal/log"
	"github.com/tonband/aircheck/internal/pool"
	"github.com/tonband/aircheck/internal/record"
	"github.com/tonband/aircheck/internal/telemetry"
)

// ErrNoStreams is returned when the catalog lists no streams for the
// requested country.
var ErrNoStreams = errors.New("session: no streams found for country")

// Resolver resolves the recordable streams of a country.
type Resolver interface {
	ResolveStreams(ctx context.Context, country string) ([]catalog.Stream, error)
}

// StreamRecorder captures one stream until the deadline.
type StreamRecorder interface {
	Record(ctx context.Context, stream catalog.Stream, deadline time.Duration) record.Outcome
}

// Archiver persists a finished report.
type Archiver interface {
	SaveReport(ctx context.Context, report *Report) error
}

// Options wire a Session. Resolver and Recorder are required; Index
// and OnOutcome are optional.
type Options struct {
	Resolver Resolver
	Recorder StreamRecorder
	// Index archives the report after the run, when set.
	Index Archiver
	// OnOutcome is invoked once per finished recording, from worker
	// goroutines.
	OnOutcome func(record.Outcome)
}

// Report summarizes one finished run.
type Report struct {
	RunID      string
	Country    string
	OutputDir  string
	Deadline   time.Duration
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []record.Outcome
}

// Succeeded counts recordings that ended without a failure.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success() {
			n++
		}
	}
	return n
}

// Failed counts recordings that ended with a failure.
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// TotalBytes sums the bytes written across all recordings.
func (r *Report) TotalBytes() int64 {
	var total int64
	for _, o := range r.Outcomes {
		total += o.Bytes
	}
	return total
}

// Progress is a point-in-time snapshot for the status server.
type Progress struct {
	RunID     string    `json:"run_id"`
	Country   string    `json:"country"`
	Streams   int       `json:"streams"`
	Completed int       `json:"completed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Bytes     int64     `json:"bytes"`
	StartedAt time.Time `json:"started_at"`
	Running   bool      `json:"running"`
}

// Session runs recording sessions for one configuration.
type Session struct {
	cfg    config.Config
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	progress Progress
	outcomes []record.Outcome
}

// New creates a Session. Resolver and Recorder must be set.
func New(cfg config.Config, opts Options) (*Session, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("session: resolver is required")
	}
	if opts.Recorder == nil {
		return nil, fmt.Errorf("session: recorder is required")
	}
	return &Session{
		cfg:    cfg,
		opts:   opts,
		logger: xglog.WithComponent("session"),
	}, nil
}

// Progress returns a snapshot of the running or last finished session.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Run executes one full recording session and returns its report.
// Catalog failures and an empty stream list abort the run; individual
// recording failures do not.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithContext(ctx, s.logger)

	tracer := telemetry.Tracer("aircheck.session")
	ctx, span := tracer.Start(ctx, "session.run",
		trace.WithAttributes(telemetry.RunAttributes(runID, s.cfg.Country)...))
	defer span.End()

	report := &Report{
		RunID:     runID,
		Country:   s.cfg.Country,
		OutputDir: s.cfg.OutputDir,
		Deadline:  s.cfg.Duration,
		StartedAt: time.Now(),
	}

	logger.Info().
		Str("country", s.cfg.Country).
		Dur("duration", s.cfg.Duration).
		Str("output_dir", s.cfg.OutputDir).
		Msg("session started")

	streams, err := s.opts.Resolver.ResolveStreams(ctx, s.cfg.Country)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve streams: %w", err)
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStreams, s.cfg.Country)
	}

	if err := fsutil.EnsureDir(s.cfg.OutputDir); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("prepare output directory: %w", err)
	}

	workers := s.cfg.MaxWorkers
	if len(streams) < workers {
		workers = len(streams)
	}
	report.Workers = workers

	s.mu.Lock()
	s.progress = Progress{
		RunID:     runID,
		Country:   s.cfg.Country,
		Streams:   len(streams),
		StartedAt: report.StartedAt,
		Running:   true,
	}
	s.outcomes = s.outcomes[:0]
	s.mu.Unlock()

	logger.Info().
		Int("streams", len(streams)).
		Int("workers", workers).
		Msg("recording streams")

	// The queue holds every task up front, so Submit never blocks and
	// the workers drain it after Stop.
	p := pool.New(workers, len(streams), s.logger)
	for _, stream := range streams {
		stream := stream
		if err := p.Submit(func() {
			taskCtx, taskSpan := tracer.Start(ctx, "session.record",
				trace.WithAttributes(telemetry.StreamAttributes(stream.Name, stream.URL)...))
			outcome := s.opts.Recorder.Record(taskCtx, stream, s.cfg.Duration)
			taskSpan.SetAttributes(telemetry.OutcomeAttributes(outcome.Reason, outcome.Bytes, outcome.Chunks)...)
			if outcome.Err != nil {
				taskSpan.RecordError(outcome.Err)
			}
			taskSpan.End()
			s.collect(outcome)
		}); err != nil {
			logger.Error().
				Err(err).
				Str("stream", stream.Name).
				Msg("task submission failed")
		}
	}
	p.Stop()

	report.FinishedAt = time.Now()
	s.mu.Lock()
	report.Outcomes = append([]record.Outcome(nil), s.outcomes...)
	s.progress.Running = false
	s.mu.Unlock()

	logger.Info().
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Int64("bytes", report.TotalBytes()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("session finished")

	var errs []error
	if s.cfg.Manifest {
		if err := WriteManifest(ctx, s.cfg.OutputDir, report); err != nil {
			logger.Error().Err(err).Msg("manifest write failed")
			errs = append(errs, fmt.Errorf("write manifest: %w", err))
		}
	}
	if s.opts.Index != nil {
		if err := s.opts.Index.SaveReport(ctx, report); err != nil {
			logger.Error().Err(err).Msg("run index save failed")
			errs = append(errs, fmt.Errorf("save report: %w", err))
		}
	}

	return report, errors.Join(errs...)
}

func (s *Session) collect(outcome record.Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, outcome)
	s.progress.Completed++
	if outcome.Success() {
		s.progress.Succeeded++
	} else {
		s.progress.Failed++
	}
	s.progress.Bytes += outcome.Bytes
	hook := s.opts.OnOutcome
	s.mu.Unlock()

	if hook != nil {
		hook(outcome)
	}
}
