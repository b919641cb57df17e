package assess

import (
	"math"
	"testing"
)

func TestIgamcExponentialIdentity(t *testing.T) {
	t.Parallel()

	// Igamc(1, x) reduces to exp(-x).
	for _, x := range []float64{0.1, 0.5, 1.0, 2.5, 10.0} {
		got := Igamc(1, x)
		want := math.Exp(-x)
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("expected Igamc(1, %g) = %g, got %g", x, want, got)
		}
	}
}

func TestIgamcErfcIdentity(t *testing.T) {
	t.Parallel()

	// Igamc(1/2, x) reduces to erfc(sqrt(x)).
	for _, x := range []float64{0.25, 1.0, 4.0, 9.0} {
		got := Igamc(0.5, x)
		want := math.Erfc(math.Sqrt(x))
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("expected Igamc(0.5, %g) = %g, got %g", x, want, got)
		}
	}
}

func TestIgamcBounds(t *testing.T) {
	t.Parallel()

	if got := Igamc(2, 0); got != 1.0 {
		t.Fatalf("expected Igamc(a, 0) = 1, got %g", got)
	}
	if got := Igamc(2, 1000); got > 1e-300 {
		t.Fatalf("expected Igamc to vanish for large x, got %g", got)
	}

	// Igam and Igamc are complementary.
	for _, x := range []float64{0.5, 2.0, 7.5} {
		sum := Igam(3, x) + Igamc(3, x)
		if math.Abs(sum-1.0) > 1e-12 {
			t.Fatalf("expected Igam + Igamc = 1 at x=%g, got %g", x, sum)
		}
	}
}
