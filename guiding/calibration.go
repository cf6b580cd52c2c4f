package guiding

import (
	"fmt"

	"github.com/openastro/astrocore/xerr"
	"gonum.org/v1/gonum/mat"
)

// ControlType tags which actuator a Calibration was measured against (spec
// §3).
type ControlType int

const (
	GuidePortControl ControlType = iota
	AOControl
)

func (t ControlType) String() string {
	if t == AOControl {
		return "AO"
	}
	return "GP"
}

// CalibrationPoint is one measurement taken during a calibration run: the
// elapsed time since the run started, the commanded offset (ra, dec
// impulse durations), and the star position the tracker observed (spec §3).
type CalibrationPoint struct {
	T        float64
	Commanded Point
	Observed Point
}

// Calibration holds the 6 affine coefficients a0..a5 mapping
// (ra-impulse, dec-impulse, elapsed-time) to an observed pixel displacement
// (spec §3):
//
//	dx = a0*dt_ra + a1*dt_dec + a2*t
//	dy = a3*dt_ra + a4*dt_dec + a5*t
type Calibration struct {
	A          [6]float64
	ControlType ControlType
	FocalLength float64
	PixelSizeUm float64
	Points      []CalibrationPoint
}

// responseMatrix returns the upper-left 2x2 submatrix [[a0,a1],[a3,a4]]
// mapping commanded impulse durations to pixel displacement.
func (c Calibration) responseMatrix() *mat.Dense {
	return mat.NewDense(2, 2, []float64{c.A[0], c.A[1], c.A[3], c.A[4]})
}

// Determinant returns det[[a0,a1],[a3,a4]]; its sign indicates parity and
// its magnitude indicates conditioning (spec §3, §4.D.2).
func (c Calibration) Determinant() float64 {
	return mat.Det(c.responseMatrix())
}

// degenerateThreshold is the completeness cutoff of spec §4.D.2.
const degenerateThreshold = 1e-9

// Complete reports whether the calibration is usable: |det| >= 1e-9.
func (c Calibration) Complete() bool {
	d := c.Determinant()
	if d < 0 {
		d = -d
	}
	return d >= degenerateThreshold
}

// Rescale multiplies every coefficient's spatial-response terms (a0,a1,a3,a4)
// and the time term (a2,a5) by factor, matching the original's
// GuiderCalibration::rescale used to convert a grid-unit solution to a
// per-second one (spec §8: "calibrate(points).rescale(1/g) equals
// calibrating with durations already divided by g").
func (c Calibration) Rescale(factor float64) Calibration {
	out := c
	for i := range out.A {
		out.A[i] *= factor
	}
	return out
}

// Correction solves M*(dt_ra, dt_dec)^T = -offset for the pulse durations
// that should null offset, using the calibration's 2x2 response matrix
// (spec §4.D.3 step 2).
func (c Calibration) Correction(offset Point) (raSeconds, decSeconds float64, err error) {
	if !c.Complete() {
		return 0, 0, fmt.Errorf("%w: calibration response matrix is singular", xerr.Degenerate)
	}
	m := c.responseMatrix()
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", xerr.Degenerate, err)
	}
	rhs := mat.NewVecDense(2, []float64{-offset.X, -offset.Y})
	var result mat.VecDense
	result.MulVec(&inv, rhs)
	return result.AtVec(0), result.AtVec(1), nil
}

// Calibrator accumulates CalibrationPoints and solves the 18-point (or
// general N-point) least-squares problem for the 6 coefficients, grounded
// on the original's GuiderCalibrator (AstroGuiding.h/CalibrationProcess.cpp):
// two independent least-squares fits, one for dx and one for dy, sharing
// the same design matrix [dt_ra, dt_dec, t].
type Calibrator struct {
	points []CalibrationPoint
}

// Add records one measurement.
func (c *Calibrator) Add(t float64, commanded, observed Point) {
	c.points = append(c.points, CalibrationPoint{T: t, Commanded: commanded, Observed: observed})
}

// Calibrate solves for the 6 coefficients via least squares and returns a
// Calibration carrying the accumulated points.
func (c *Calibrator) Calibrate() (Calibration, error) {
	n := len(c.points)
	if n < 3 {
		return Calibration{}, fmt.Errorf("%w: need at least 3 calibration points, have %d", xerr.Degenerate, n)
	}

	design := mat.NewDense(n, 3, nil)
	dx := mat.NewVecDense(n, nil)
	dy := mat.NewVecDense(n, nil)
	for i, p := range c.points {
		design.Set(i, 0, p.Commanded.X)
		design.Set(i, 1, p.Commanded.Y)
		design.Set(i, 2, p.T)
		dx.SetVec(i, p.Observed.X)
		dy.SetVec(i, p.Observed.Y)
	}

	var ax, ay mat.VecDense
	if err := ax.SolveVec(design, dx); err != nil {
		return Calibration{}, fmt.Errorf("%w: least squares solve for dx: %v", xerr.Degenerate, err)
	}
	if err := ay.SolveVec(design, dy); err != nil {
		return Calibration{}, fmt.Errorf("%w: least squares solve for dy: %v", xerr.Degenerate, err)
	}

	cal := Calibration{Points: c.points}
	cal.A[0], cal.A[1], cal.A[2] = ax.AtVec(0), ax.AtVec(1), ax.AtVec(2)
	cal.A[3], cal.A[4], cal.A[5] = ay.AtVec(0), ay.AtVec(1), ay.AtVec(2)
	return cal, nil
}
