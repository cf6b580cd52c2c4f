package guiding

import (
	"context"
	"time"

	"github.com/openastro/astrocore/image"
)

// DefaultGuidingInterval is the default period Delta of spec §4.D.3.
const DefaultGuidingInterval = 10 * time.Second

// TrackingPoint is emitted once per guiding cycle (spec §3's
// CallbackDataPtr TrackingPoint variant).
type TrackingPoint struct {
	Offset           Point
	RASeconds        float64
	DecSeconds       float64
	ExposureFailed   bool
}

// TrackingPointFunc receives one TrackingPoint per successful or failed
// guiding cycle.
type TrackingPointFunc func(TrackingPoint)

// ImageSaver optionally persists each guiding exposure to an image
// repository (spec §4.D.3 step 5).
type ImageSaver func(*image.Image)

// GuidingProcess runs the periodic closed loop of spec §4.D.3: expose,
// track, solve the 2x2 correction, clamp to the cycle interval, split into
// four signed channels, activate, and report.  Grounded on the original's
// GuiderProcess loop structure referenced from AstroGuiding.h (the
// GuidingThread<T> main-loop/terminate-flag pattern used by
// CalibrationProcess and, per the header, GuiderProcess) and the
// REDESIGN FLAGS of spec §9: the original's terminate-flag-polling thread
// becomes a goroutine selecting on a stop channel between waitable points.
type GuidingProcess struct {
	Ccd         image.Exposer
	Actuator    Actuator
	Tracker     Tracker
	Calibration Calibration
	Interval    time.Duration

	OnTrackingPoint TrackingPointFunc
	OnImage         ImageSaver

	stop chan struct{}
	done chan struct{}
}

// NewGuidingProcess returns a GuidingProcess ready to Start.  interval <= 0
// uses DefaultGuidingInterval.
func NewGuidingProcess(ccd image.Exposer, actuator Actuator, tracker Tracker, cal Calibration, interval time.Duration) *GuidingProcess {
	if interval <= 0 {
		interval = DefaultGuidingInterval
	}
	return &GuidingProcess{
		Ccd: ccd, Actuator: actuator, Tracker: tracker, Calibration: cal, Interval: interval,
	}
}

// Start launches the guiding loop in a goroutine.
func (g *GuidingProcess) Start(ctx context.Context, exp image.Exposure) {
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.run(ctx, exp)
}

// Stop requests termination and waits for the loop to exit.  Stopping is
// fast: the loop checks stop between steps and at every waitable point,
// per spec §4.D.3.
func (g *GuidingProcess) Stop() {
	close(g.stop)
	<-g.done
}

func (g *GuidingProcess) run(ctx context.Context, exp image.Exposure) {
	defer close(g.done)
	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()

	// Cancel ctx on Stop so an exposure Wait inside cycle returns promptly.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-g.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		default:
		}

		g.cycle(ctx, exp)

		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		case <-ticker.C:
		}
	}
}

// cycle runs one guiding iteration.  A failed exposure is reported, not
// retried inline; the next cycle proceeds on schedule (spec §4.D.3).
func (g *GuidingProcess) cycle(ctx context.Context, exp image.Exposure) {
	if err := g.Ccd.StartExposure(exp); err != nil {
		g.report(TrackingPoint{ExposureFailed: true})
		return
	}
	if err := g.Ccd.Wait(ctx); err != nil {
		g.report(TrackingPoint{ExposureFailed: true})
		return
	}
	img, err := g.Ccd.GetImage()
	if err != nil {
		g.report(TrackingPoint{ExposureFailed: true})
		return
	}

	offset, err := g.Tracker.Track(img)
	if err != nil {
		g.report(TrackingPoint{ExposureFailed: true})
		return
	}

	raSec, decSec, err := g.Calibration.Correction(offset)
	if err != nil {
		g.report(TrackingPoint{Offset: offset, ExposureFailed: true})
		return
	}

	maxSec := g.Interval.Seconds()
	raSec = clamp(raSec, -maxSec, maxSec)
	decSec = clamp(decSec, -maxSec, maxSec)

	var raPlus, raMinus, decPlus, decMinus float64
	if raSec > 0 {
		raPlus = raSec
	} else {
		raMinus = -raSec
	}
	if decSec > 0 {
		decPlus = decSec
	} else {
		decMinus = -decSec
	}
	if err := g.Actuator.Pulse(raPlus, raMinus, decPlus, decMinus); err != nil {
		g.report(TrackingPoint{Offset: offset, RASeconds: raSec, DecSeconds: decSec, ExposureFailed: true})
		return
	}

	if g.OnImage != nil {
		g.OnImage(img)
	}
	g.report(TrackingPoint{Offset: offset, RASeconds: raSec, DecSeconds: decSec})
}

func (g *GuidingProcess) report(tp TrackingPoint) {
	if g.OnTrackingPoint != nil {
		g.OnTrackingPoint(tp)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
