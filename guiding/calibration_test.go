package guiding_test

import (
	"math"
	"testing"

	"github.com/openastro/astrocore/guiding"
)

// syntheticCalibrator builds a Calibrator whose points were generated by a
// known affine map, so Calibrate should recover those exact coefficients.
func syntheticCalibrator(a [6]float64) *guiding.Calibrator {
	c := &guiding.Calibrator{}
	commanded := []guiding.Point{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 0, Y: -1}, {X: 1, Y: 1}}
	for i, cmd := range commanded {
		t := float64(i)
		dx := a[0]*cmd.X + a[1]*cmd.Y + a[2]*t
		dy := a[3]*cmd.X + a[4]*cmd.Y + a[5]*t
		c.Add(t, cmd, guiding.Point{X: dx, Y: dy})
	}
	return c
}

func TestCalibratorRecoversKnownCoefficients(t *testing.T) {
	want := [6]float64{2, 0, 0.1, 0, 2, -0.1}
	cal, err := syntheticCalibrator(want).Calibrate()
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	for i := range want {
		if math.Abs(cal.A[i]-want[i]) > 1e-9 {
			t.Fatalf("A[%d] = %v, want %v", i, cal.A[i], want[i])
		}
	}
}

func TestCalibratorRequiresThreePoints(t *testing.T) {
	c := &guiding.Calibrator{}
	c.Add(0, guiding.Point{X: 1}, guiding.Point{X: 1})
	c.Add(1, guiding.Point{X: 2}, guiding.Point{X: 2})
	if _, err := c.Calibrate(); err == nil {
		t.Fatal("expected error with fewer than 3 points")
	}
}

func TestCalibrationCompleteAndCorrection(t *testing.T) {
	cal := guiding.Calibration{A: [6]float64{2, 0, 0, 0, 2, 0}}
	if !cal.Complete() {
		t.Fatal("expected a non-singular 2x identity-like matrix to be complete")
	}

	raSec, decSec, err := cal.Correction(guiding.Point{X: 4, Y: -6})
	if err != nil {
		t.Fatalf("Correction() error = %v", err)
	}
	if math.Abs(raSec-(-2)) > 1e-9 || math.Abs(decSec-3) > 1e-9 {
		t.Fatalf("Correction() = %v, %v; want -2, 3", raSec, decSec)
	}
}

func TestCalibrationDegenerateRejectsCorrection(t *testing.T) {
	cal := guiding.Calibration{} // all-zero response matrix: singular
	if cal.Complete() {
		t.Fatal("zero response matrix should not be Complete")
	}
	if _, _, err := cal.Correction(guiding.Point{X: 1, Y: 1}); err == nil {
		t.Fatal("expected error correcting against a degenerate calibration")
	}
}

func TestCalibrationRescale(t *testing.T) {
	cal := guiding.Calibration{A: [6]float64{10, 20, 30, 40, 50, 60}}
	got := cal.Rescale(0.5)
	want := [6]float64{5, 10, 15, 20, 25, 30}
	if got.A != want {
		t.Fatalf("Rescale(0.5).A = %v, want %v", got.A, want)
	}
}
