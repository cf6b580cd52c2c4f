package guiding

import (
	"context"
	"fmt"

	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/xerr"
)

// Actuator is the minimal surface a CalibrationProcess and GuidingProcess
// need from a drift-correction device. NewGuidePortActuator adapts a
// device.GuidePort to it; this package has no device.AdaptiveOptics
// adapter.
type Actuator interface {
	Pulse(raPlus, raMinus, decPlus, decMinus float64) error
}

// guidePortActuator adapts a device.GuidePort to Actuator.
type guidePortActuator struct {
	gp device.GuidePort
}

func NewGuidePortActuator(gp device.GuidePort) Actuator {
	return guidePortActuator{gp: gp}
}

func (a guidePortActuator) Pulse(raPlus, raMinus, decPlus, decMinus float64) error {
	return a.gp.Activate(raPlus, raMinus, decPlus, decMinus)
}

// Clock abstracts elapsed time so tests can supply a deterministic one;
// production callers pass a wrapper over time.Now.
type Clock interface {
	Now() float64 // seconds, monotonic within one process run
	Sleep(seconds float64)
}

// ProgressFunc reports (step, total) during a calibration or backlash run.
type ProgressFunc func(step, total int)

// CalibrationPointFunc is called once per grid visit with the raw
// measurement, before the least-squares solve (spec §4.D.2).
type CalibrationPointFunc func(CalibrationPoint)

// CalibrationProcess drives the 3x3 grid search of spec §4.D.2, grounded on
// the original's CalibrationProcess::main/pointat/measure/moveto/
// gridconstant (control/lib/CalibrationProcess.cpp): visit every
// (i,j) in {-1,0,1}^2 in row-major order, pulse to that grid point, measure,
// pulse back to the origin, measure again, then least-squares solve and
// rescale by 1/grid.
type CalibrationProcess struct {
	Ccd         image.Exposer
	Actuator    Actuator
	Tracker     Tracker
	Clock       Clock
	Exposure    image.Exposure
	FocalLength float64 // mm
	PixelSizeUm float64

	OnPoint    CalibrationPointFunc
	OnProgress ProgressFunc
}

// gridRange is R in spec §4.D.2's {-R,...,+R}^2, fixed at 1 (9 grid points,
// 18 measurements once the return-to-origin visit is counted).
const gridRange = 1

// gridConstant computes g = max(2, 10*(pixelsize/7.4)/(focallength/100))
// seconds, grounded on CalibrationProcess::gridconstant.  focallength <= 0
// or pixelsize <= 0 falls back to the original's default of 10.
func gridConstant(focallengthMM, pixelsizeUm float64) float64 {
	if focallengthMM <= 0 || pixelsizeUm <= 0 {
		return 10
	}
	g := 10 * (pixelsizeUm / 7.4) / (focallengthMM / 100)
	if g < 2 {
		g = 2
	}
	return g
}

// Run executes the calibration grid search and returns the solved, rescaled
// Calibration.  ctx cancellation is checked before every grid step, matching
// spec §4.D.2's "cancellation is checked before every step".
func (cp *CalibrationProcess) Run(ctx context.Context) (Calibration, error) {
	grid := gridConstant(cp.FocalLength, cp.PixelSizeUm)
	calibrator := &Calibrator{}

	total := (2*gridRange + 1) * (2*gridRange + 1)
	step := 0
	for i := -gridRange; i <= gridRange; i++ {
		for j := -gridRange; j <= gridRange; j++ {
			select {
			case <-ctx.Done():
				return Calibration{}, ctx.Err()
			default:
			}

			if err := cp.measure(ctx, calibrator, float64(i), float64(j), grid); err != nil {
				return Calibration{}, err
			}
			step++
			if cp.OnProgress != nil {
				cp.OnProgress(step, total)
			}
		}
	}

	cal, err := calibrator.Calibrate()
	if err != nil {
		return Calibration{}, err
	}
	cal = cal.Rescale(1 / grid)
	cal.FocalLength = cp.FocalLength
	cal.PixelSizeUm = cp.PixelSizeUm
	cal.ControlType = GuidePortControl
	if !cal.Complete() {
		return Calibration{}, fmt.Errorf("%w: det=%v", xerr.Degenerate, cal.Determinant())
	}
	return cal, nil
}

// measure moves to the grid point (i,j) (i.e. pulses the actuator for
// (i*grid, j*grid) seconds), records a point, moves back to the origin, and
// records a second point, per CalibrationProcess::measure.  The calibrator
// is fed the grid index (i,j), not the pulse duration, so that Calibrate's
// solved response matrix is per grid unit; Run's Rescale(1/grid) then
// converts it to a per-second one.
func (cp *CalibrationProcess) measure(ctx context.Context, calibrator *Calibrator, i, j, grid float64) error {
	ra, dec := i*grid, j*grid

	point, t, err := cp.pointAt(ctx, ra, dec)
	if err != nil {
		return err
	}
	calibrator.Add(t, Point{X: i, Y: j}, point)
	if cp.OnPoint != nil {
		cp.OnPoint(CalibrationPoint{T: t, Commanded: Point{X: i, Y: j}, Observed: point})
	}

	point, t, err = cp.pointAt(ctx, -ra, -dec)
	if err != nil {
		return err
	}
	calibrator.Add(t, Point{}, point)
	if cp.OnPoint != nil {
		cp.OnPoint(CalibrationPoint{T: t, Commanded: Point{}, Observed: point})
	}
	return nil
}

// pointAt moves (relatively) to a grid point, exposes, and tracks the
// result, per CalibrationProcess::pointat.
func (cp *CalibrationProcess) pointAt(ctx context.Context, ra, dec float64) (Point, float64, error) {
	if err := cp.moveTo(ra, dec); err != nil {
		return Point{}, 0, err
	}
	if err := cp.Ccd.StartExposure(cp.Exposure); err != nil {
		return Point{}, 0, err
	}
	if err := cp.Ccd.Wait(ctx); err != nil {
		return Point{}, 0, err
	}
	img, err := cp.Ccd.GetImage()
	if err != nil {
		return Point{}, 0, err
	}
	pt, err := cp.Tracker.Track(img)
	if err != nil {
		return Point{}, 0, err
	}
	return pt, cp.Clock.Now(), nil
}

// moveTo pulses the actuator for |ra| seconds on the appropriate RA channel
// then for |dec| seconds on the appropriate Dec channel, sleeping out each
// pulse before returning, per CalibrationProcess::moveto.
func (cp *CalibrationProcess) moveTo(ra, dec float64) error {
	var raPlus, raMinus float64
	if ra > 0 {
		raPlus = ra
	} else {
		raMinus = -ra
	}
	if err := cp.Actuator.Pulse(raPlus, raMinus, 0, 0); err != nil {
		return err
	}
	t := raPlus
	if raMinus > t {
		t = raMinus
	}
	cp.Clock.Sleep(t)

	var decPlus, decMinus float64
	if dec > 0 {
		decPlus = dec
	} else {
		decMinus = -dec
	}
	if err := cp.Actuator.Pulse(0, 0, decPlus, decMinus); err != nil {
		return err
	}
	t = decPlus
	if decMinus > t {
		t = decMinus
	}
	cp.Clock.Sleep(t)
	return nil
}
