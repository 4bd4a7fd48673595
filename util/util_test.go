package util_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/lightsheet/fastmc/util"
)

func ExampleLinspace() {
	fmt.Println(util.Linspace(0, 1, 5))
	// Output: [0 0.25 0.5 0.75 1]
}

func ExampleArange() {
	fmt.Println(util.Arange(0, 1, 0.25))
	// Output: [0 0.25 0.5 0.75]
}

func TestLinspaceEndpointsExact(t *testing.T) {
	var (
		start = -1.521
		end   = 1.521
		n     = 289
	)
	out := util.Linspace(start, end, n)
	if len(out) != n {
		t.Fatalf("expected %d samples, got %d", n, len(out))
	}
	if out[0] != start {
		t.Errorf("expected first sample %f, got %f", start, out[0])
	}
	if out[n-1] != end {
		t.Errorf("expected last sample %f, got %f", end, out[n-1])
	}
}

func TestLinspaceDegenerate(t *testing.T) {
	out := util.Linspace(2, 5, 1)
	if len(out) != 1 || out[0] != 2 {
		t.Errorf("expected [2], got %v", out)
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestRound(t *testing.T) {
	out := util.Round(1.3, 0.5)
	if out != 1.5 {
		t.Errorf("expected 1.5 got %f", out)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}
