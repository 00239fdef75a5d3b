// SPDX-License-Identifier: MIT

package record

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tonband/aircheck/internal/catalog"
)

// endlessStream serves chunk every interval until the client goes away.
func endlessStream(chunk []byte, interval time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		flusher, ok := w.(http.Flusher)
		if !ok {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := w.Write(chunk); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}))
}

// finiteStream serves the payload in one response and ends it.
func finiteStream(payload []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(payload)
	}))
}

func TestRecordStopsAtDeadline(t *testing.T) {
	if testing.Short() {
		t.Skip("pacing test runs for two seconds")
	}

	srv := endlessStream(bytes.Repeat([]byte{0xFF}, 512), 100*time.Millisecond)
	defer srv.Close()

	dir := t.TempDir()
	rec := NewRecorder(dir, Options{})

	start := time.Now()
	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Pacer", URL: srv.URL}, 2*time.Second)
	elapsed := time.Since(start)

	if outcome.Reason != ReasonDeadline {
		t.Fatalf("Reason = %q, want deadline (err %v)", outcome.Reason, outcome.Err)
	}
	if !outcome.Success() {
		t.Error("deadline outcome should count as success")
	}
	// One chunk arrives per tick, so two seconds of recording yields
	// about twenty chunks. Wide margins keep slow machines green.
	if outcome.Chunks < 17 || outcome.Chunks > 23 {
		t.Errorf("Chunks = %d, want about 20", outcome.Chunks)
	}
	// The deadline is soft: the overshoot stays below one chunk
	// interval plus scheduling noise.
	if elapsed < 2*time.Second || elapsed > 2600*time.Millisecond {
		t.Errorf("elapsed = %s, want between 2s and 2.6s", elapsed)
	}

	info, err := os.Stat(outcome.Path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != outcome.Bytes {
		t.Errorf("file size = %d, outcome bytes = %d", info.Size(), outcome.Bytes)
	}
}

func TestRecordStopsWhenSourceEnds(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1000)
	srv := finiteStream(payload)
	defer srv.Close()

	dir := t.TempDir()
	rec := NewRecorder(dir, Options{ChunkSize: 256})

	start := time.Now()
	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Short", URL: srv.URL}, time.Minute)

	if outcome.Reason != ReasonSourceEnded {
		t.Fatalf("Reason = %q, want source_ended (err %v)", outcome.Reason, outcome.Err)
	}
	if !outcome.Success() {
		t.Error("source_ended outcome should count as success")
	}
	if outcome.Bytes != int64(len(payload)) {
		t.Errorf("Bytes = %d, want %d", outcome.Bytes, len(payload))
	}
	// The recorder must return immediately, not sit out the deadline.
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("returned after %s, expected immediate return on EOF", elapsed)
	}

	got, err := os.ReadFile(outcome.Path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("file content mismatch: %d bytes vs %d", len(got), len(payload))
	}
}

func TestRecordRequestRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	rec := NewRecorder(dir, Options{})

	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Dead", URL: srv.URL}, time.Second)

	if outcome.Reason != ReasonRequestFailed {
		t.Fatalf("Reason = %q, want request_failed", outcome.Reason)
	}
	if outcome.Success() {
		t.Error("request failure must not count as success")
	}
	if !errors.Is(outcome.Err, ErrNetwork) {
		t.Errorf("Err = %v, want ErrNetwork", outcome.Err)
	}
	if outcome.Path != "" {
		t.Errorf("Path = %q, want empty", outcome.Path)
	}

	// A failed request must not leave a file behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir not empty: %v", entries)
	}
}

func TestRecordUnreachableHost(t *testing.T) {
	srv := finiteStream(nil)
	url := srv.URL
	srv.Close()

	dir := t.TempDir()
	rec := NewRecorder(dir, Options{})

	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Gone", URL: url}, time.Second)

	if outcome.Reason != ReasonRequestFailed {
		t.Fatalf("Reason = %q, want request_failed", outcome.Reason)
	}
	if !errors.Is(outcome.Err, ErrNetwork) {
		t.Errorf("Err = %v, want ErrNetwork", outcome.Err)
	}
}

func TestRecordFileCreateFailure(t *testing.T) {
	srv := finiteStream([]byte("audio"))
	defer srv.Close()

	dir := t.TempDir()
	// Occupy the target path with a directory so os.Create fails.
	if err := os.Mkdir(filepath.Join(dir, "stream_Blocked.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	rec := NewRecorder(dir, Options{})
	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Blocked", URL: srv.URL}, time.Second)

	if outcome.Reason != ReasonFileCreate {
		t.Fatalf("Reason = %q, want file_create_failed", outcome.Reason)
	}
	if !errors.Is(outcome.Err, ErrFilesystem) {
		t.Errorf("Err = %v, want ErrFilesystem", outcome.Err)
	}
	if outcome.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0 (response discarded)", outcome.Bytes)
	}
}

func TestRecordOverwritesExistingFile(t *testing.T) {
	payload := []byte("fresh audio data")
	srv := finiteStream(payload)
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "stream_Rerun.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x00}, 4096), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := NewRecorder(dir, Options{})
	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Rerun", URL: srv.URL}, time.Minute)

	if outcome.Reason != ReasonSourceEnded {
		t.Fatalf("Reason = %q, want source_ended", outcome.Reason)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("old content not replaced: got %d bytes", len(got))
	}
}

func TestRecordZeroDeadline(t *testing.T) {
	srv := endlessStream([]byte{0x01}, 10*time.Millisecond)
	defer srv.Close()

	dir := t.TempDir()
	rec := NewRecorder(dir, Options{})

	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Instant", URL: srv.URL}, 0)

	if outcome.Reason != ReasonDeadline {
		t.Fatalf("Reason = %q, want deadline", outcome.Reason)
	}
	if outcome.Bytes != 0 || outcome.Chunks != 0 {
		t.Errorf("expected empty recording, got %d bytes in %d chunks", outcome.Bytes, outcome.Chunks)
	}

	info, err := os.Stat(outcome.Path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("file size = %d, want 0", info.Size())
	}
}

func TestRecordKeepsPartialFileOnReadError(t *testing.T) {
	partial := bytes.Repeat([]byte{0xCD}, 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Promise more bytes than are sent, then end the response.
		// The client sees an unexpected EOF mid-body.
		w.Header().Set("Content-Length", "100000")
		_, _ = w.Write(partial)
	}))
	defer srv.Close()

	dir := t.TempDir()
	rec := NewRecorder(dir, Options{ChunkSize: 64})

	outcome := rec.Record(context.Background(), catalog.Stream{Name: "Truncated", URL: srv.URL}, time.Minute)

	if outcome.Reason != ReasonReadFailed {
		t.Fatalf("Reason = %q, want read_failed (err %v)", outcome.Reason, outcome.Err)
	}
	if !errors.Is(outcome.Err, ErrNetwork) {
		t.Errorf("Err = %v, want ErrNetwork", outcome.Err)
	}
	if outcome.Bytes != int64(len(partial)) {
		t.Errorf("Bytes = %d, want %d", outcome.Bytes, len(partial))
	}

	got, err := os.ReadFile(outcome.Path)
	if err != nil {
		t.Fatalf("partial file missing: %v", err)
	}
	if !bytes.Equal(got, partial) {
		t.Errorf("partial content mismatch: %d bytes", len(got))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"KEXP 90.3", "KEXP903"},
		{"Radio Café 99.5", "RadioCafe995"},
		{"Ràdio Ciutat", "RadioCiutat"},
		{"NRK P1 Ålesund", "NRKP1Alesund"},
		{"simple", "simple"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("Radio Café 99.5"); got != "stream_RadioCafe995.mp3" {
		t.Errorf("FileName() = %q", got)
	}
	if got := FileName(""); got != "stream_.mp3" {
		t.Errorf("FileName() = %q", got)
	}
}
