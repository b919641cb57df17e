package clock

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Fatalf("expected RealClock.Now within [%v, %v], got %v", before, after, got)
	}
}

func TestSinceWithFakeClock(t *testing.T) {
	t.Parallel()

	fake := NewFakeClock()
	start := fake.Now()
	fake.Advance(1500 * time.Millisecond)

	if d := Since(fake, start); d != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s elapsed, got %v", d)
	}
}

func TestFakeClockAfterAndFire(t *testing.T) {
	t.Parallel()

	fake := NewFakeClock()
	ch := fake.After(time.Minute)

	select {
	case <-ch:
		t.Fatalf("expected no timer event before Fire")
	default:
	}

	fake.Fire()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected timer event after Fire")
	}
}

func TestFakeClockBanksFire(t *testing.T) {
	t.Parallel()

	fake := NewFakeClock()
	fake.Fire()

	select {
	case <-fake.After(time.Minute):
	case <-time.After(time.Second):
		t.Fatalf("expected banked Fire to satisfy next After")
	}
}
