package pipeline

import (
	"testing"
	"time"
)

func TestBarrierAcquireReleaseAllowsReentry(t *testing.T) {
	b := NewBarrier()

	release, err := b.Acquire("doc.pdf", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	release2, err := b.Acquire("doc.pdf", time.Second)
	if err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	release2()
}

func TestBarrierDistinctSourcesDoNotContend(t *testing.T) {
	b := NewBarrier()

	releaseA, err := b.Acquire("a.pdf", time.Second)
	if err != nil {
		t.Fatalf("Acquire a.pdf: %v", err)
	}
	defer releaseA()

	releaseB, err := b.Acquire("b.pdf", time.Second)
	if err != nil {
		t.Fatalf("Acquire b.pdf should not block on a.pdf's lock: %v", err)
	}
	releaseB()
}

func TestBarrierTimesOutWhenHeld(t *testing.T) {
	b := NewBarrier()

	release, err := b.Acquire("doc.pdf", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	_, err = b.Acquire("doc.pdf", 20*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error while the token is held")
	}
}

func TestBarrierDoesNotLeakGoroutineOnTimeout(t *testing.T) {
	b := NewBarrier()
	release, err := b.Acquire("doc.pdf", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := b.Acquire("doc.pdf", 10*time.Millisecond); err == nil {
		t.Fatalf("expected timeout")
	}

	release()

	release2, err := b.Acquire("doc.pdf", time.Second)
	if err != nil {
		t.Fatalf("lock should be immediately available after release, a leaked acquirer would have stolen it: %v", err)
	}
	release2()
}
