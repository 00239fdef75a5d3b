// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitWithinBurst(t *testing.T) {
	l := New(1, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("burst should not block, took %s", elapsed)
	}
}

func TestWaitHonorsContextCancel(t *testing.T) {
	// One token per minute: the second Wait must block until cancel.
	l := New(1.0/60.0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after cancel")
	}
}

func TestAllow(t *testing.T) {
	l := New(1.0/60.0, 1)
	if !l.Allow() {
		t.Fatal("first Allow() should pass")
	}
	if l.Allow() {
		t.Fatal("second Allow() should be limited")
	}
}
