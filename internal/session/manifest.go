// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	xglog "github.com/tonband/aircheck/internal/log"
)

// ManifestName is the file written next to the recordings.
const ManifestName = "aircheck_manifest.json"

// Manifest is the JSON document describing a finished run.
type Manifest struct {
	RunID           string          `json:"run_id"`
	Country         string          `json:"country"`
	DeadlineSeconds float64         `json:"deadline_seconds"`
	Workers         int             `json:"workers"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Streams         []ManifestEntry `json:"streams"`
}

// ManifestEntry describes one recording attempt.
type ManifestEntry struct {
	Name           string  `json:"name"`
	URL            string  `json:"url"`
	File           string  `json:"file,omitempty"`
	Bytes          int64   `json:"bytes"`
	Chunks         int     `json:"chunks"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Reason         string  `json:"reason"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
}

// WriteManifest writes the run manifest into dir. The write is atomic
// and durable: fsync before rename, so a crash never leaves a torn
// manifest next to the recordings.
func WriteManifest(ctx context.Context, dir string, report *Report) error {
	logger := xglog.FromContext(ctx)
	path := filepath.Join(dir, ManifestName)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending manifest: %w", err)
	}
	defer func() {
		// Cleanup on error - renameio removes temp file if not committed
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending manifest")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(buildManifest(report)); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace manifest: %w", err)
	}

	logger.Info().
		Str("path", path).
		Int("streams", len(report.Outcomes)).
		Msg("manifest written")
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	// #nosec G304 -- manifest paths are derived from the operator's output dir
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func buildManifest(report *Report) Manifest {
	m := Manifest{
		RunID:           report.RunID,
		Country:         report.Country,
		DeadlineSeconds: report.Deadline.Seconds(),
		Workers:         report.Workers,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		Streams:         make([]ManifestEntry, 0, len(report.Outcomes)),
	}
	for _, o := range report.Outcomes {
		entry := ManifestEntry{
			Name:           o.Stream,
			URL:            o.URL,
			Bytes:          o.Bytes,
			Chunks:         o.Chunks,
			ElapsedSeconds: o.Elapsed.Seconds(),
			Reason:         o.Reason,
			Success:        o.Success(),
		}
		if o.Path != "" {
			entry.File = filepath.Base(o.Path)
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		m.Streams = append(m.Streams, entry)
	}
	return m
}
