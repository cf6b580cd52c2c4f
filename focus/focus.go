// Package focus implements the sweep-based focusing controller of spec
// §4.F: positions a Focuser across [min,max], evaluates a figure of merit
// at each step, and hands the (position, value) pairs to a Solver.
package focus

import (
	"context"
	"fmt"
	"math"

	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/image"
)

// State is the focusing state machine of spec §4.F.
type State int

const (
	Idle State = iota
	Moving
	Measuring
	Focused
	Failed
)

func (s State) String() string {
	return [...]string{"IDLE", "MOVING", "MEASURING", "FOCUSED", "FAILED"}[s]
}

// FigureOfMerit reduces an image to a scalar focus quality measure (FWHM,
// brightness, a generic "measure"...).  Implementations decide whether
// larger or smaller is better; Solver is told which via Larger.
type FigureOfMerit interface {
	Evaluate(img *image.Image) (float64, error)
	// Larger reports whether a larger value indicates better focus
	// (brightness, FOM) as opposed to smaller-is-better (FWHM).
	Larger() bool
}

// FWHMFigureOfMerit estimates the full-width-half-maximum of the brightest
// star in the frame from its luminance-weighted second moment; smaller is
// better focus.
type FWHMFigureOfMerit struct{}

func (FWHMFigureOfMerit) Larger() bool { return false }

func (FWHMFigureOfMerit) Evaluate(img *image.Image) (float64, error) {
	px := img.U16()
	var maxVal float64
	var maxX, maxY int
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := float64(px[y*img.Width+x])
			if v > maxVal {
				maxVal, maxX, maxY = v, x, y
			}
		}
	}
	if maxVal == 0 {
		return 0, fmt.Errorf("focus: empty frame")
	}
	var wsum, varsum float64
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := float64(px[y*img.Width+x])
			d2 := float64((x-maxX)*(x-maxX) + (y-maxY)*(y-maxY))
			wsum += v
			varsum += v * d2
		}
	}
	variance := varsum / wsum
	return 2.3548 * math.Sqrt(variance), nil // FWHM = 2*sqrt(2 ln 2)*sigma
}

// BrightnessFigureOfMerit is the sum of all pixel values; larger is better
// (a crisply focused star concentrates more counts above background within
// the frame than a bloated one, for a fixed exposure).
type BrightnessFigureOfMerit struct{}

func (BrightnessFigureOfMerit) Larger() bool { return true }

func (BrightnessFigureOfMerit) Evaluate(img *image.Image) (float64, error) {
	px := img.U16()
	var sum float64
	for _, v := range px {
		sum += float64(v)
	}
	return sum, nil
}

// FocusItem is one (position, value) measurement (spec §4.F step 1).
type FocusItem struct {
	Position float64
	Value    float64
}

// FocusPointFunc is called once per sweep step with the image, position,
// and evaluated figure-of-merit value, per the original's
// FocusWork::callback(ImagePtr, position, value).
type FocusPointFunc func(img *image.Image, position, value float64)

// Solver picks a target focuser position from a set of measurements.
type Solver interface {
	Position(items []FocusItem, larger bool) (float64, error)
}

// Sweep drives the focuser across [Min,Max] in Steps positions, evaluates
// Merit at each, and hands the results to Solver, grounded on the
// original's FocusWork::main (control/lib/focusing/FocusWork.cpp): compute
// `min + step*(max-min)/(steps-1)`, move (applying the Focuser's own
// backlash-from-below contract), expose, evaluate, callback, solve, and
// move to the solved position. Any step failing, or a solved position
// outside [min,max], ends in Failed per the original's state machine.
type Sweep struct {
	Focuser  device.Focuser
	Ccd      image.Exposer
	Exposure image.Exposure
	Min, Max float64
	Steps    int
	Merit    FigureOfMerit
	Solver   Solver

	OnPoint FocusPointFunc

	state State
}

// NewSweep validates the sweep parameters per the original's
// FocusWork::complete (min < max, steps >= 3).
func NewSweep(focuser device.Focuser, ccd image.Exposer, exp image.Exposure, min, max float64, steps int, merit FigureOfMerit, solver Solver) (*Sweep, error) {
	if min >= max {
		return nil, fmt.Errorf("focus: max must exceed min")
	}
	if steps < 3 {
		return nil, fmt.Errorf("focus: needs at least 3 points")
	}
	return &Sweep{
		Focuser: focuser, Ccd: ccd, Exposure: exp,
		Min: min, Max: max, Steps: steps, Merit: merit, Solver: solver,
	}, nil
}

// State reports the current focusing state.
func (s *Sweep) State() State { return s.state }

// Run executes the sweep and leaves the focuser at the solved position.
func (s *Sweep) Run(ctx context.Context) (float64, error) {
	items := make([]FocusItem, 0, s.Steps)
	for step := 0; step < s.Steps; step++ {
		select {
		case <-ctx.Done():
			s.state = Failed
			return 0, ctx.Err()
		default:
		}

		position := s.Min + float64(step)*(s.Max-s.Min)/float64(s.Steps-1)
		s.state = Moving
		if err := s.Focuser.MoveTo(position); err != nil {
			s.state = Failed
			return 0, err
		}

		s.state = Measuring
		if err := s.Ccd.StartExposure(s.Exposure); err != nil {
			s.state = Failed
			return 0, err
		}
		if err := s.Ccd.Wait(ctx); err != nil {
			s.state = Failed
			return 0, err
		}
		img, err := s.Ccd.GetImage()
		if err != nil {
			s.state = Failed
			return 0, err
		}
		value, err := s.Merit.Evaluate(img)
		if err != nil {
			s.state = Failed
			return 0, err
		}
		if s.OnPoint != nil {
			s.OnPoint(img, position, value)
		}
		items = append(items, FocusItem{Position: position, Value: value})
	}

	target, err := s.Solver.Position(items, s.Merit.Larger())
	if err != nil {
		s.state = Failed
		return 0, err
	}
	if target < s.Min || target > s.Max {
		s.state = Failed
		return 0, fmt.Errorf("focus: solved position %v outside [%v,%v]", target, s.Min, s.Max)
	}

	s.state = Moving
	if err := s.Focuser.MoveTo(target); err != nil {
		s.state = Failed
		return 0, err
	}
	s.state = Focused
	return target, nil
}
