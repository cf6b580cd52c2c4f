package task

import (
	"context"
	"fmt"
	"time"

	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/instrument"
)

// Resolver resolves device names to concrete devices, satisfied by
// *devname.Repository.
type Resolver interface {
	Get(name devname.Name) (any, error)
}

// ImageSaver persists a completed exposure and returns its stored filename.
type ImageSaver func(img *image.Image, repository string) (filename string, err error)

// coolerWaitTimeout matches the original's hardcoded 30s cooler wait in
// ExposureTask::run (TaskExecutor.cpp); the filter-wheel readiness waits
// have no constant of their own and reuse device.FilterWheelTimeout so
// the same constant governs both the direct FilterWheel.Wait contract and
// this executor's wait-before-select step.
const coolerWaitTimeout = 30 * time.Second

// Executor runs a single TaskQueueEntry to completion, bracketing device
// acquisition/release around the exposure, grounded line-for-line on the
// original's ExposureTask (control/lib/TaskExecutor.cpp): acquire camera
// and ccd, optionally cooler, filterwheel, and mount, set cooler/filterwheel,
// bounded-wait for both to be ready (the filterwheel wait is both before and
// after Select, the second one gating exposure start on reaching IDLE),
// start the exposure, wait (interruptibly) for exposure completion, on
// success attach FILTER, temperature, and RA/DEC metadata and save to the
// image repository, and always turn the cooler back off on the way out.
type Executor struct {
	Resolver   Resolver
	Instrument instrument.Instrument
	Store      Store
	SaveImage  ImageSaver
}

// Run executes entry to a terminal state, persisting state transitions via
// Store.Update as they happen, and returns the terminal error (if any).
// ctx cancellation maps to the CANCELLED state, matching the original's
// thread-cancel-signal path.
func (ex *Executor) Run(ctx context.Context, entry *TaskQueueEntry) error {
	entry.State = Executing
	entry.LastChange = time.Now()
	if err := ex.Store.Update(entry); err != nil {
		return err
	}

	ccd, cooler, wheel, mount, filterName, err := ex.acquire(entry)
	if err != nil {
		return ex.fail(entry, err)
	}
	defer func() {
		if cooler != nil {
			_ = cooler.SetOn(false)
		}
	}()

	if cooler != nil && entry.Params.CcdTemperature > 0 {
		if err := cooler.SetTemperature(entry.Params.CcdTemperature); err != nil {
			return ex.fail(entry, err)
		}
		if err := cooler.SetOn(true); err != nil {
			return ex.fail(entry, err)
		}
	}
	if wheel != nil && entry.Params.FilterPosition >= 0 {
		waitForFilterWheelIdle(ctx, wheel, device.FilterWheelTimeout)
		if err := wheel.Select(entry.Params.FilterPosition); err != nil {
			return ex.fail(entry, err)
		}
		if !waitForFilterWheelIdle(ctx, wheel, device.FilterWheelTimeout) {
			return ex.fail(entry, fmt.Errorf("filter wheel did not reach IDLE after select"))
		}
		name, err := wheel.FilterName(entry.Params.FilterPosition)
		if err == nil {
			filterName = name
		}
	}

	if cooler != nil {
		stable, err := cooler.Wait(ctx, coolerWaitTimeout)
		if err != nil {
			return ex.fail(entry, err)
		}
		_ = stable // original: logs and proceeds regardless (XXX left unresolved upstream too)
	}

	if err := ccd.StartExposure(entry.Params.Exposure); err != nil {
		return ex.fail(entry, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, entry.Params.Exposure.ExposureTime+time.Second)
	defer cancel()
	err = ccd.Wait(waitCtx)
	if ctx.Err() != nil {
		_ = ccd.CancelExposure()
		entry.State = Cancelled
		entry.LastChange = time.Now()
		return ex.Store.Update(entry)
	}
	if err != nil {
		return ex.fail(entry, err)
	}

	img, err := ccd.GetImage()
	if err != nil {
		return ex.fail(entry, err)
	}
	img.Metadata.Set("FILTER", image.Card{Value: filterName})
	if cooler != nil {
		if actual, err := cooler.GetActualTemperature(); err == nil {
			img.Metadata.Set("CCD-TEMP", image.Card{Value: actual, Typed: true})
		}
		if set, err := cooler.GetSetTemperature(); err == nil {
			img.Metadata.Set("SET-TEMP", image.Card{Value: set, Typed: true})
		}
	}
	if mount != nil {
		if radec, err := mount.GetRaDec(); err == nil {
			img.Metadata.Set("RA", image.Card{Value: radec.RA, Typed: true})
			img.Metadata.Set("DEC", image.Card{Value: radec.Dec, Typed: true})
		}
	}

	filename, err := ex.SaveImage(img, entry.Params.RepositoryName)
	if err != nil {
		return ex.fail(entry, err)
	}

	entry.Filename = filename
	entry.Frame = image.Rect{Width: img.Width, Height: img.Height}
	entry.State = Complete
	entry.LastChange = time.Now()
	return ex.Store.Update(entry)
}

func (ex *Executor) fail(entry *TaskQueueEntry, cause error) error {
	entry.State = Failed
	entry.Cause = cause.Error()
	entry.LastChange = time.Now()
	if err := ex.Store.Update(entry); err != nil {
		return err
	}
	return cause
}

// waitForFilterWheelIdle polls State() once every 100ms until it reports
// WheelIdle, ctx is done, or timeout elapses, and reports whether the wheel
// settled to WheelIdle. The pre-select call (matching the original's
// "waste of time" filterwheel->wait(10) call, whose result ExposureTask::run
// ignores before proceeding to select()) discards the result; the post-select
// call does not, matching the original's filterwheel->wait(30), whose
// failure to settle throws and fails the task.
func waitForFilterWheelIdle(ctx context.Context, wheel device.FilterWheel, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for wheel.State() == device.WheelMoving && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return wheel.State() == device.WheelIdle
		case <-ticker.C:
		}
	}
	return wheel.State() == device.WheelIdle
}

func (ex *Executor) acquire(entry *TaskQueueEntry) (ccd device.Ccd, cooler device.Cooler, wheel device.FilterWheel, mount device.Mount, filterName string, err error) {
	refs := entry.Params.Refs
	filterName = "NONE"

	camName, ok := ex.Instrument.Camera(refs.CameraIndex)
	if !ok {
		return nil, nil, nil, nil, "", fmt.Errorf("instrument %q has no camera index %d", refs.Instrument, refs.CameraIndex)
	}
	camDev, err := ex.Resolver.Get(camName)
	if err != nil {
		return nil, nil, nil, nil, "", err
	}
	cam, ok := camDev.(device.Camera)
	if !ok {
		return nil, nil, nil, nil, "", fmt.Errorf("%s is not a Camera", camName)
	}
	ccd, err = cam.GetCcd(refs.CcdIndex)
	if err != nil {
		return nil, nil, nil, nil, "", err
	}

	if refs.CoolerIndex >= 0 && entry.Params.CcdTemperature > 0 {
		if name, ok := ex.Instrument.Cooler(refs.CoolerIndex); ok {
			dev, err := ex.Resolver.Get(name)
			if err == nil {
				cooler, _ = dev.(device.Cooler)
			}
		}
	}

	if refs.FilterWheelIndex >= 0 && entry.Params.FilterPosition >= 0 {
		if name, ok := ex.Instrument.FilterWheel(refs.FilterWheelIndex); ok {
			dev, err := ex.Resolver.Get(name)
			if err == nil {
				wheel, _ = dev.(device.FilterWheel)
			}
		}
	}

	if refs.MountIndex >= 0 {
		if name, ok := ex.Instrument.Mount(refs.MountIndex); ok {
			dev, err := ex.Resolver.Get(name)
			if err == nil {
				mount, _ = dev.(device.Mount)
			}
		}
	}

	return ccd, cooler, wheel, mount, filterName, nil
}
