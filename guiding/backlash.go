package guiding

import (
	"context"
	"math"

	"github.com/openastro/astrocore/image"
)

// BacklashDirection names which axis a backlash run probed.
type BacklashDirection int

const (
	BacklashRA BacklashDirection = iota
	BacklashDec
)

// BacklashPoint is one streamed measurement during a backlash run (spec
// §3's BacklashPoint callback variant), grounded on the original's
// GuiderBase::callback(const BacklashPoint&) (GuiderBase.cpp).
type BacklashPoint struct {
	Step   int
	Offset Point
}

// BacklashResult is the final fit of a backlash run (spec §4.D.4): the
// jump width of the piecewise-linear hysteresis loop estimates the
// mechanical backlash, here reported in the tracker's offset units (pixels
// along the probed axis).
type BacklashResult struct {
	Direction BacklashDirection
	Lag       float64
	Error     float64
}

// BacklashPointFunc streams points as they're measured.
type BacklashPointFunc func(BacklashPoint)

// BacklashProcess commands alternating extreme pulses on one axis, records
// the tracker's offset after each, and fits a two-line hysteresis model
// whose jump width is the backlash estimate (spec §4.D.4).
type BacklashProcess struct {
	Actuator  Actuator
	Ccd       image.Exposer
	Tracker   Tracker
	Exposure  image.Exposure
	Direction BacklashDirection
	Amplitude float64 // actuator-seconds per alternating pulse
	Cycles    int      // number of full up/down alternations

	OnPoint BacklashPointFunc
}

// Run executes the alternating-pulse sequence and returns the fitted
// BacklashResult.
func (b *BacklashProcess) Run(ctx context.Context) (BacklashResult, error) {
	var points []BacklashPoint
	for c := 0; c < b.Cycles; c++ {
		for _, sign := range []float64{1, -1} {
			select {
			case <-ctx.Done():
				return BacklashResult{}, ctx.Err()
			default:
			}
			offset, err := b.pulseAndMeasure(ctx, sign*b.Amplitude)
			if err != nil {
				return BacklashResult{}, err
			}
			p := BacklashPoint{Step: len(points), Offset: offset}
			points = append(points, p)
			if b.OnPoint != nil {
				b.OnPoint(p)
			}
		}
	}
	return fitHysteresis(points, b.Direction), nil
}

func (b *BacklashProcess) pulseAndMeasure(ctx context.Context, signedSeconds float64) (Point, error) {
	var err error
	if b.Direction == BacklashRA {
		if signedSeconds > 0 {
			err = b.Actuator.Pulse(signedSeconds, 0, 0, 0)
		} else {
			err = b.Actuator.Pulse(0, -signedSeconds, 0, 0)
		}
	} else {
		if signedSeconds > 0 {
			err = b.Actuator.Pulse(0, 0, signedSeconds, 0)
		} else {
			err = b.Actuator.Pulse(0, 0, 0, -signedSeconds)
		}
	}
	if err != nil {
		return Point{}, err
	}

	if err := b.Ccd.StartExposure(b.Exposure); err != nil {
		return Point{}, err
	}
	if err := b.Ccd.Wait(ctx); err != nil {
		return Point{}, err
	}
	img, err := b.Ccd.GetImage()
	if err != nil {
		return Point{}, err
	}
	return b.Tracker.Track(img)
}

// fitHysteresis separates the up-going and down-going legs (even/odd steps)
// of the alternating sequence, fits each to its mean offset along the
// probed axis, and reports the jump between the two legs as the lag
// (backlash estimate) with the RMS residual as the fit error.
func fitHysteresis(points []BacklashPoint, dir BacklashDirection) BacklashResult {
	if len(points) == 0 {
		return BacklashResult{Direction: dir}
	}
	axis := func(p Point) float64 {
		if dir == BacklashRA {
			return p.X
		}
		return p.Y
	}

	var upSum, downSum float64
	var upN, downN int
	for i, p := range points {
		v := axis(p.Offset)
		if i%2 == 0 {
			upSum += v
			upN++
		} else {
			downSum += v
			downN++
		}
	}
	var upMean, downMean float64
	if upN > 0 {
		upMean = upSum / float64(upN)
	}
	if downN > 0 {
		downMean = downSum / float64(downN)
	}
	lag := math.Abs(upMean - downMean)

	var sqErr float64
	for i, p := range points {
		v := axis(p.Offset)
		mean := upMean
		if i%2 != 0 {
			mean = downMean
		}
		d := v - mean
		sqErr += d * d
	}
	rms := math.Sqrt(sqErr / float64(len(points)))

	return BacklashResult{Direction: dir, Lag: lag, Error: rms}
}
