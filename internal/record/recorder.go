// SPDX-License-Identifier: MIT

// Package record captures single radio streams to local MP3 files.
package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonband/aircheck/internal/catalog"
	"github.com/tonband/aircheck/internal/fsutil"
	xglog "github.com/tonband/aircheck/internal/log"
	"github.com/tonband/aircheck/internal/metrics"
	"github.com/tonband/aircheck/internal/netutil"
)

// Recorder writes stream audio to files under a fixed directory.
type Recorder struct {
	dir       string
	chunkSize int
	client    *http.Client
	logger    zerolog.Logger
}

// Options tune a Recorder. Zero values fall back to defaults.
type Options struct {
	ChunkSize int
	Client    *http.Client
}

// NewRecorder creates a recorder that writes into dir.
func NewRecorder(dir string, opts Options) *Recorder {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 4096
	}
	if opts.Client == nil {
		opts.Client = newStreamClient()
	}
	return &Recorder{
		dir:       dir,
		chunkSize: opts.ChunkSize,
		client:    opts.Client,
		logger:    xglog.WithComponent("record"),
	}
}

// newStreamClient builds an HTTP client for live streams. It carries
// no overall timeout: the body is read until the recording deadline.
// Dial and header phases stay bounded so a dead host fails fast.
func newStreamClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
		},
	}
}

// Record captures one stream for at most deadline and returns how the
// attempt ended. Failures are reported in the outcome, never as a
// panic, and a partially written file stays on disk. The deadline is
// checked between chunks, so the recording may overshoot by up to one
// chunk read.
func (r *Recorder) Record(ctx context.Context, stream catalog.Stream, deadline time.Duration) (outcome Outcome) {
	outcome = Outcome{Stream: stream.Name, URL: stream.URL}
	start := time.Now()

	logger := xglog.WithContext(xglog.ContextWithStream(ctx, stream.Name), r.logger)

	defer func() {
		outcome.Elapsed = time.Since(start)
		success := outcome.Success()
		metrics.IncRecording(outcome.Reason, success)
		if outcome.Path != "" {
			metrics.ObserveRecording(outcome.Bytes, outcome.Elapsed)
		}
		evt := logger.Info()
		if !success {
			evt = logger.Warn()
		}
		evt.Str("reason", outcome.Reason).
			Int64("bytes", outcome.Bytes).
			Int("chunks", outcome.Chunks).
			Dur("elapsed", outcome.Elapsed).
			Msg("recording finished")
	}()

	path, err := fsutil.ConfineJoin(r.dir, FileName(stream.Name))
	if err != nil {
		outcome.Reason = ReasonFileCreate
		outcome.Err = fmt.Errorf("%w: %v", ErrFilesystem, err)
		logger.Error().Err(err).Msg("output path rejected")
		return outcome
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		outcome.Reason = ReasonRequestFailed
		outcome.Err = fmt.Errorf("%w: %v", ErrNetwork, err)
		logger.Error().
			Err(err).
			Str("url", netutil.SanitizeURL(stream.URL)).
			Msg("request build failed")
		return outcome
	}

	res, err := r.client.Do(req)
	if err != nil {
		outcome.Reason = ReasonRequestFailed
		outcome.Err = fmt.Errorf("%w: %v", ErrNetwork, err)
		logger.Error().
			Err(err).
			Str("url", netutil.SanitizeURL(stream.URL)).
			Msg("stream request failed")
		return outcome
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		outcome.Reason = ReasonRequestFailed
		outcome.Err = fmt.Errorf("%w: unexpected status %d", ErrNetwork, res.StatusCode)
		logger.Error().
			Int("status", res.StatusCode).
			Str("url", netutil.SanitizeURL(stream.URL)).
			Msg("stream request rejected")
		return outcome
	}

	// Status is checked before the file is created, so a failed
	// request leaves no trace on disk.
	file, err := os.Create(path) // #nosec G304 -- path is confined to the output dir
	if err != nil {
		outcome.Reason = ReasonFileCreate
		outcome.Err = fmt.Errorf("%w: %v", ErrFilesystem, err)
		logger.Error().Err(err).Str("path", path).Msg("output file create failed")
		return outcome
	}
	outcome.Path = path

	logger.Info().
		Str("path", path).
		Dur("deadline", deadline).
		Msg("recording started")

	deadlineStart := time.Now()
	buf := make([]byte, r.chunkSize)

	for {
		if time.Since(deadlineStart) >= deadline {
			outcome.Reason = ReasonDeadline
			break
		}

		n, readErr := res.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				outcome.Reason = ReasonWriteFailed
				outcome.Err = fmt.Errorf("%w: %v", ErrFilesystem, writeErr)
				logger.Error().
					Err(writeErr).
					Int64("bytes", outcome.Bytes).
					Msg("write failed, keeping partial file")
				break
			}
			outcome.Bytes += int64(n)
			outcome.Chunks++
		}
		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
				outcome.Reason = ReasonSourceEnded
			case errors.Is(readErr, context.Canceled), errors.Is(readErr, context.DeadlineExceeded):
				outcome.Reason = ReasonReadFailed
				outcome.Err = fmt.Errorf("%w: %v", ErrNetwork, readErr)
				logger.Warn().
					Err(readErr).
					Int64("bytes", outcome.Bytes).
					Msg("recording canceled, keeping partial file")
			default:
				outcome.Reason = ReasonReadFailed
				outcome.Err = fmt.Errorf("%w: %v", ErrNetwork, readErr)
				logger.Error().
					Err(readErr).
					Int64("bytes", outcome.Bytes).
					Msg("read failed, keeping partial file")
			}
			break
		}
	}

	if err := file.Close(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("output file close failed")
	}

	return outcome
}
