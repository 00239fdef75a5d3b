// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tonband/aircheck/internal/cache"
	"github.com/tonband/aircheck/internal/ratelimit"
)

// fastOptions keeps tests snappy: tight timeout, no effective limit.
func fastOptions() Options {
	return Options{
		Timeout: 2 * time.Second,
		Limiter: ratelimit.New(1000, 1000),
	}
}

func TestResolveStreams(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()

	srv.AddPlace("paris", "Paris", "France")
	srv.AddPlace("lyon", "Lyon", "France")
	srv.AddPlace("oslo", "Oslo", "Norway")
	srv.AddChannel("paris", "FIP", "/france/paris/fip-abc123")
	srv.AddChannel("paris", "Radio Nova", "/france/paris/nova-def456")
	srv.AddChannel("lyon", "Radio Scoop", "/france/lyon/scoop-ghi789")
	srv.AddChannel("oslo", "NRK P1", "/norway/oslo/nrk-jkl012")

	c := New(srv.URL, fastOptions())
	got, err := c.ResolveStreams(context.Background(), "France")
	if err != nil {
		t.Fatalf("ResolveStreams() error = %v", err)
	}

	want := []Stream{
		{Name: "FIP", URL: srv.URL + "/listen/fip-abc123/channel.mp3"},
		{Name: "Radio Nova", URL: srv.URL + "/listen/nova-def456/channel.mp3"},
		{Name: "Radio Scoop", URL: srv.URL + "/listen/scoop-ghi789/channel.mp3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveStreams() mismatch (-want +got):\n%s", diff)
	}

	// Resolution touches the places endpoint once and the channels
	// endpoint once per matched place.
	if hits := srv.Hits("places"); hits != 1 {
		t.Errorf("places hits = %d, want 1", hits)
	}
	if hits := srv.Hits("channels"); hits != 2 {
		t.Errorf("channels hits = %d, want 2", hits)
	}
}

func TestResolveStreamsSkipsBareItems(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()

	srv.AddPlace("paris", "Paris", "France")
	srv.AddBareItem("paris")
	srv.AddChannel("paris", "FIP", "/france/paris/fip-abc123")
	srv.AddBareItem("paris")

	c := New(srv.URL, fastOptions())
	got, err := c.ResolveStreams(context.Background(), "France")
	if err != nil {
		t.Fatalf("ResolveStreams() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "FIP" {
		t.Errorf("ResolveStreams() = %+v, want only FIP", got)
	}
}

func TestResolveStreamsNoMatches(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()

	srv.AddPlace("oslo", "Oslo", "Norway")

	c := New(srv.URL, fastOptions())
	got, err := c.ResolveStreams(context.Background(), "Atlantis")
	if err != nil {
		t.Fatalf("ResolveStreams() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no streams, got %+v", got)
	}
	// No matched places means the channels endpoint is never hit.
	if hits := srv.Hits("channels"); hits != 0 {
		t.Errorf("channels hits = %d, want 0", hits)
	}
}

func TestPlacesServerError(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()
	srv.SetFailures("places", 1)

	c := New(srv.URL, fastOptions())
	_, err := c.Places(context.Background())
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}

	var catErr *Error
	if !errors.As(err, &catErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if catErr.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", catErr.Status)
	}
	if catErr.Operation != "places" {
		t.Errorf("Operation = %q, want places", catErr.Operation)
	}
}

func TestPlacesUnreachable(t *testing.T) {
	srv := NewMockServer()
	base := srv.URL
	srv.Close()

	c := New(base, fastOptions())
	_, err := c.Places(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestPlacesMalformedResponse(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()
	srv.SetRawResponse("places", `{"data": {"list": [`)

	c := New(srv.URL, fastOptions())
	_, err := c.Places(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestChannelsFailureAbortsResolution(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()

	srv.AddPlace("paris", "Paris", "France")
	srv.AddPlace("lyon", "Lyon", "France")
	srv.AddChannel("paris", "FIP", "/france/paris/fip-abc123")
	srv.SetFailures("channels", 1)

	c := New(srv.URL, fastOptions())
	_, err := c.ResolveStreams(context.Background(), "France")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestPlacesServedFromCache(t *testing.T) {
	srv := NewMockServer()
	defer srv.Close()
	srv.AddPlace("paris", "Paris", "France")

	store, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer func() { _ = store.Close() }()

	opts := fastOptions()
	opts.Cache = store
	opts.CacheTTL = time.Minute
	c := New(srv.URL, opts)

	for i := 0; i < 3; i++ {
		places, err := c.Places(context.Background())
		if err != nil {
			t.Fatalf("Places() call %d error = %v", i, err)
		}
		if len(places) != 1 {
			t.Fatalf("Places() call %d = %+v", i, places)
		}
	}

	if hits := srv.Hits("places"); hits != 1 {
		t.Errorf("places hits = %d, want 1 (rest from cache)", hits)
	}
}

func TestChannelID(t *testing.T) {
	tests := []struct {
		pageURL string
		want    string
	}{
		{"/france/paris/fip-abc123", "fip-abc123"},
		{"http://radio.garden/listen/fip-abc123", "fip-abc123"},
		{"fip-abc123", "fip-abc123"},
		{"/trailing/", ""},
	}
	for _, tt := range tests {
		if got := channelID(tt.pageURL); got != tt.want {
			t.Errorf("channelID(%q) = %q, want %q", tt.pageURL, got, tt.want)
		}
	}
}

func TestStreamURL(t *testing.T) {
	got := StreamURL("http://radio.garden/api/ara/content/", "fip-abc123")
	want := "http://radio.garden/api/ara/content/listen/fip-abc123/channel.mp3"
	if got != want {
		t.Errorf("StreamURL() = %q, want %q", got, want)
	}
}
