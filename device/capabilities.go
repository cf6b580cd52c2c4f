// Package device defines the polymorphic capability contracts of spec §4.B:
// Ccd, Cooler, FilterWheel, Focuser, GuidePort, AdaptiveOptics, and Mount,
// plus the callback bus and property-file loader shared by every driver.
//
// Each capability is kept as a small interface, grounded on the teacher's
// camera.Minimal/camera.Sci split (nasa-jpl/golaborate camera/camera.go):
// a minimal contract plus optional extended ones, so driver back-ends only
// implement what their hardware actually supports.
package device

import (
	"context"
	"time"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/image"
)

// ExposureState is the Ccd state machine of spec §4.B.
type ExposureState int

const (
	Idle ExposureState = iota
	Exposing
	Exposed
	Cancelling
	Streaming
	Broken
)

func (s ExposureState) String() string {
	return [...]string{"IDLE", "EXPOSING", "EXPOSED", "CANCELLING", "STREAMING", "BROKEN"}[s]
}

// FilterWheelState is the FilterWheel state machine of spec §4.B.
type FilterWheelState int

const (
	WheelIdle FilterWheelState = iota
	WheelMoving
	WheelUnknown
)

func (s FilterWheelState) String() string {
	return [...]string{"IDLE", "MOVING", "UNKNOWN"}[s]
}

// MountState is the Mount state machine of spec §4.B.
type MountState int

const (
	MountIdle MountState = iota
	MountAligned
	MountTracking
	MountGoto
	MountLimit
	MountParked
)

func (s MountState) String() string {
	return [...]string{"IDLE", "ALIGNED", "TRACKING", "GOTO", "LIMIT", "PARKED"}[s]
}

// Named is implemented by every device: it knows its own DeviceName.
type Named interface {
	DeviceName() devname.Name
}

// Ccd is a sensor that can expose, stream, and be cancelled.  Invariants
// (spec §4.B): StartExposure is only legal in Idle or Exposed; GetImage is
// only legal in Exposed and clears the ready image on return.
type Ccd interface {
	Named

	Info() image.CcdInfo
	StartExposure(image.Exposure) error
	ExposureStatus() ExposureState
	Wait(ctx context.Context) error
	GetImage() (*image.Image, error)
	CancelExposure() error

	StartStream(image.Exposure) error
	StopStream() error
	RegisterSink(ImageSink)
}

// ImageSink receives push-delivered images from a streaming Ccd or the image
// pipeline (spec §4.C "Sink").
type ImageSink interface {
	Deliver(image.QueueEntry)
}

// Camera is a physical unit exposing one or more Ccd sensors, mirroring the
// original's astro::camera::Camera (one camera, N ccds) so the task
// executor can resolve a (camera, ccdid) pair to a concrete Ccd (spec
// §4.E).
type Camera interface {
	Named

	NCcds() int
	GetCcd(id int) (Ccd, error)
}

// Cooler manages focal-plane temperature.  Guard rails (spec §4.B): reject
// setpoints <= 0K or >= 350K.
type Cooler interface {
	Named

	SetTemperature(kelvin float64) error
	GetSetTemperature() (float64, error)
	GetActualTemperature() (float64, error)
	SetOn(bool) error
	IsOn() (bool, error)
	// Stable reports true when |actual-set| is within threshold (default 3K).
	Stable() (bool, error)
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
}

// MinKelvin and MaxKelvin are the Cooler guard rails of spec §4.B.
const (
	MinKelvin = 0.0
	MaxKelvin = 350.0

	// DefaultStableThreshold is the default |actual-set| band (spec §4.B).
	DefaultStableThreshold = 3.0
)

// DewHeater is an optional Cooler extension.
type DewHeater interface {
	DewHeaterRange() (min, max float64)
	DewHeaterCurrent() (float64, error)
	DewHeaterSet(float64) error
}

// FilterWheel selects among a fixed set of named filter positions.  Issuing
// Select while Moving fails with xerr.BadState.
type FilterWheel interface {
	Named

	NFilters() int
	CurrentPosition() (int, error)
	FilterName(i int) (string, error)
	Select(i int) error
	SelectByName(name string) error
	State() FilterWheelState
}

// FilterWheelTimeout is the unified readiness wait (spec §9 open question,
// resolved in SPEC_FULL.md to the middle of the observed 10/20/30s spread).
const FilterWheelTimeout = 20 * time.Second

// Focuser moves a single linear axis with a backlash-from-below contract:
// if current > target, the mechanism overshoots below target by Backlash()
// then approaches from below, so arrivals always come from the same side.
type Focuser interface {
	Named

	Min() float64
	Max() float64
	Current() (float64, error)
	Backlash() float64
	MoveTo(target float64) error
}

// GuidePortState holds the four independent pulse channels.
type GuidePortState struct {
	RAPlus, RAMinus, DecPlus, DecMinus bool
}

// MaxPulseSeconds is the guideport activation clamp (spec §9 open question,
// resolved in SPEC_FULL.md per the spec's own "e.g. ... <= 1000s" text).
const MaxPulseSeconds = 1000.0

// GuidePort issues timed TTL/relay pulses on four independent channels.
type GuidePort interface {
	Named

	Active() GuidePortState
	Activate(raPlus, raMinus, decPlus, decMinus float64) error
}

// AdaptiveOptics steers a tip-tilt (or higher-order) corrector within
// [-1, 1] on each axis.
type AdaptiveOptics interface {
	Named

	Set(x, y float64) error
	Get() (x, y float64, err error)
	Center() error
}

// RaDec is an equatorial coordinate pair in degrees.
type RaDec struct {
	RA, Dec float64
}

// AzAlt is a horizontal coordinate pair in degrees.
type AzAlt struct {
	Az, Alt float64
}

// Mount slews a telescope mount.
type Mount interface {
	Named

	Goto(RaDec) error
	Cancel() error
	State() MountState
	GetRaDec() (RaDec, error)
	GetAzAlt() (AzAlt, error)
}
