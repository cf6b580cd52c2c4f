package guiding_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/openastro/astrocore/guiding"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/xerr"
)

// posActuator tracks its own cumulative (ra, dec) position across Pulse
// calls, so a test Tracker can report a position-dependent measurement
// without needing a real star field.
type posActuator struct {
	ra, dec float64
}

func (a *posActuator) Pulse(raPlus, raMinus, decPlus, decMinus float64) error {
	a.ra += raPlus - raMinus
	a.dec += decPlus - decMinus
	return nil
}

// posTracker reports the current posActuator position scaled by a known
// diagonal response, so the recovered calibration can be checked exactly.
type posTracker struct {
	act   *posActuator
	scale float64
}

func (t *posTracker) Track(*image.Image) (guiding.Point, error) {
	return guiding.Point{X: t.scale * t.act.ra, Y: t.scale * t.act.dec}, nil
}

func TestCalibrationProcessRecoversResponseMatrix(t *testing.T) {
	act := &posActuator{}
	cp := &guiding.CalibrationProcess{
		Ccd:      &fakeCcd{img: image.NewImage(1, 1, image.U16)},
		Actuator: act,
		Tracker:  &posTracker{act: act, scale: 2},
		Clock:    &fakeClock{},
		Exposure: image.Exposure{},
	}

	var points []guiding.CalibrationPoint
	cp.OnPoint = func(p guiding.CalibrationPoint) { points = append(points, p) }

	var progress [][2]int
	cp.OnProgress = func(step, total int) { progress = append(progress, [2]int{step, total}) }

	cal, err := cp.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(points) != 18 {
		t.Fatalf("len(points) = %d, want 18 (9 grid cells x 2 measurements)", len(points))
	}
	if len(progress) != 9 {
		t.Fatalf("len(progress) = %d, want 9", len(progress))
	}
	if progress[8] != [2]int{9, 9} {
		t.Fatalf("final progress = %v, want {9 9}", progress[8])
	}

	want := [6]float64{2, 0, 0, 0, 2, 0}
	for i := range want {
		if math.Abs(cal.A[i]-want[i]) > 1e-9 {
			t.Fatalf("A[%d] = %v, want %v (A = %v)", i, cal.A[i], want[i], cal.A)
		}
	}
	if !cal.Complete() {
		t.Fatal("recovered calibration should be Complete")
	}

	// every step returns the actuator to the origin before the next one.
	if act.ra != 0 || act.dec != 0 {
		t.Fatalf("actuator position after Run = (%v,%v), want (0,0)", act.ra, act.dec)
	}
}

func TestCalibrationProcessRunWrapsDegenerateResult(t *testing.T) {
	act := &posActuator{}
	cp := &guiding.CalibrationProcess{
		Ccd: &fakeCcd{img: image.NewImage(1, 1, image.U16)},
		// scale 0: the tracker reports (0,0) no matter how the actuator
		// moves, so the recovered response matrix is the zero matrix.
		Actuator: act,
		Tracker:  &posTracker{act: act, scale: 0},
		Clock:    &fakeClock{},
	}

	_, err := cp.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error for a degenerate (zero) response matrix")
	}
	if !errors.Is(err, xerr.Degenerate) {
		t.Fatalf("err = %v, want errors.Is(err, xerr.Degenerate)", err)
	}
}

func TestCalibrationProcessStopsOnCancellation(t *testing.T) {
	act := &posActuator{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cp := &guiding.CalibrationProcess{
		Ccd:      &fakeCcd{img: image.NewImage(1, 1, image.U16)},
		Actuator: act,
		Tracker:  &posTracker{act: act, scale: 1},
		Clock:    &fakeClock{},
	}

	if _, err := cp.Run(ctx); err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}
