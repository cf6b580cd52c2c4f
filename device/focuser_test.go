package device_test

import (
	"testing"

	"github.com/openastro/astrocore/device"
)

func TestFocuserBaseRejectsOutOfRange(t *testing.T) {
	f := device.NewFocuserBase(0, 1000, 50, func(target float64) error { return nil })

	if err := f.MoveTo(-1); err == nil {
		t.Fatal("expected error moving below min")
	}
	if err := f.MoveTo(1001); err == nil {
		t.Fatal("expected error moving above max")
	}
}

func TestFocuserBaseApproachesFromBelow(t *testing.T) {
	var moves []float64
	f := device.NewFocuserBase(0, 1000, 50, func(target float64) error {
		moves = append(moves, target)
		return nil
	})

	must(t, f.MoveTo(500))
	if len(moves) != 1 || moves[0] != 500 {
		t.Fatalf("moving up from min: moves = %v, want [500]", moves)
	}

	moves = nil
	must(t, f.MoveTo(300))
	if len(moves) != 2 || moves[0] != 250 || moves[1] != 300 {
		t.Fatalf("moving down: moves = %v, want [250 300] (overshoot by backlash then approach)", moves)
	}

	got, err := f.Current()
	if err != nil || got != 300 {
		t.Fatalf("Current() = %v, %v; want 300, nil", got, err)
	}
}

func TestFocuserBaseBacklashClampsAtMin(t *testing.T) {
	var moves []float64
	f := device.NewFocuserBase(0, 1000, 50, func(target float64) error {
		moves = append(moves, target)
		return nil
	})
	must(t, f.MoveTo(20))

	moves = nil
	must(t, f.MoveTo(10))
	if len(moves) != 2 || moves[0] != 0 || moves[1] != 10 {
		t.Fatalf("moves = %v, want [0 10] (backlash clamped at min)", moves)
	}
}
