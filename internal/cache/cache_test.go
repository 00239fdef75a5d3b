// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestBadgerRoundTrip(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	want := []byte(`{"data":{"list":[]}}`)
	if err := c.Set("http://radio.garden/api/ara/content/places", want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok := c.Get("http://radio.garden/api/ara/content/places")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get() = %q, want %q", got, want)
	}
}

func TestBadgerTTLExpiry(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Set("short-lived", []byte("x"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok := c.Get("short-lived"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := c.Get("short-lived"); ok {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestNoopCache(t *testing.T) {
	c := NewNoop()
	if err := c.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("noop cache must never hit")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
