// Package simmodule implements a fully software-simulated driver module:
// a Ccd (with a synthetic star field), Cooler, FilterWheel, Focuser,
// GuidePort, AdaptiveOptics, and Mount, registered under module name "sim"
// with devname.Register the way every real driver module would register
// itself from its own init().
//
// Grounded on spec §4.A's observation that this core "must compile and
// test without" any vendor SDK or RPC transport (spec §9's CORBA+ICE
// REDESIGN FLAG) and on DESIGN.md's resolution of the QHY v1/v2 open
// question: no cgo vendor SDK is wrapped anywhere in this module, so a
// simulated module stands in for every piece of hardware the teacher would
// otherwise talk to over comm.RemoteDevice. The AdaptiveOptics backend's
// optional pre-recorded disturbance playback is grounded on the teacher's
// fsm.Disturbance (nasa-jpl/golaborate fsm/fsm.go): a buffered sequence of
// [2]float64 points played back on a timer, with pause/resume/stop control
// via an unbuffered signal channel, ported away from fsm's original
// mccdaq.DAC-backed ControlLoop (a cgo binding to real DAQ hardware,
// unusable without the physical card) onto this package's in-memory mirror
// position.
package simmodule

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/openastro/astrocore/devname"
	"github.com/openastro/astrocore/device"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/xerr"
)

const moduleName = "sim"

func init() {
	devname.Register(moduleName, func() (devname.Module, error) {
		return NewModule(), nil
	})
}

// Module is the simulated driver module. It owns one of each device type,
// addressed as unit "0" under the "sim" module name.
type Module struct {
	loc *locator
}

// NewModule constructs a simulated module with one instance of every
// device type, ready for discovery through its Locator.
func NewModule() *Module {
	return &Module{loc: newLocator()}
}

func (m *Module) Descriptor() devname.Descriptor {
	return devname.Descriptor{Name: moduleName, Version: "1.0.0-sim", HasDeviceLocator: true}
}

func (m *Module) Locator() (devname.Locator, error) {
	return m.loc, nil
}

type locator struct {
	mu      sync.Mutex
	ccd     *Ccd
	cooler  *Cooler
	wheel   *FilterWheel
	focuser *Focuser
	port    *GuidePort
	ao      *AdaptiveOptics
	mount   *Mount
	cam     *Camera
}

func newLocator() *locator {
	l := &locator{}
	ccdName := devname.Name{Type: devname.Ccd, Path: []string{moduleName, "0", "Imaging"}}
	l.ccd = NewCcd(ccdName)
	l.cam = &Camera{name: devname.Name{Type: devname.Camera, Path: []string{moduleName, "0"}}, ccd: l.ccd}
	l.cooler = NewCooler(devname.Name{Type: devname.Cooler, Path: []string{moduleName, "0"}})
	l.wheel = NewFilterWheel(devname.Name{Type: devname.FilterWheel, Path: []string{moduleName, "0"}},
		[]string{"NONE", "RED", "GREEN", "BLUE", "LUM"})
	l.focuser = NewFocuser(devname.Name{Type: devname.Focuser, Path: []string{moduleName, "0"}}, 0, 10000, 250)
	l.port = NewGuidePort(devname.Name{Type: devname.GuidePort, Path: []string{moduleName, "0"}})
	l.ao = NewAdaptiveOptics(devname.Name{Type: devname.AdaptiveOptics, Path: []string{moduleName, "0"}})
	l.mount = NewMount(devname.Name{Type: devname.Mount, Path: []string{moduleName, "0"}})
	return l
}

func (l *locator) Devicelist(t devname.Type) ([]devname.Name, error) {
	switch t {
	case devname.Camera:
		return []devname.Name{l.cam.name}, nil
	case devname.Ccd:
		return []devname.Name{l.ccd.name}, nil
	case devname.Cooler:
		return []devname.Name{l.cooler.name}, nil
	case devname.FilterWheel:
		return []devname.Name{l.wheel.name}, nil
	case devname.Focuser:
		return []devname.Name{l.focuser.name}, nil
	case devname.GuidePort:
		return []devname.Name{l.port.name}, nil
	case devname.AdaptiveOptics:
		return []devname.Name{l.ao.name}, nil
	case devname.Mount:
		return []devname.Name{l.mount.name}, nil
	default:
		return nil, fmt.Errorf("%s: %w", t, xerr.NotFound)
	}
}

func (l *locator) Get(name devname.Name) (any, error) {
	switch name.Type {
	case devname.Camera:
		if name.Equal(l.cam.name) {
			return l.cam, nil
		}
	case devname.Ccd:
		if name.Equal(l.ccd.name) {
			return l.ccd, nil
		}
	case devname.Cooler:
		if name.Equal(l.cooler.name) {
			return l.cooler, nil
		}
	case devname.FilterWheel:
		if name.Equal(l.wheel.name) {
			return l.wheel, nil
		}
	case devname.Focuser:
		if name.Equal(l.focuser.name) {
			return l.focuser, nil
		}
	case devname.GuidePort:
		if name.Equal(l.port.name) {
			return l.port, nil
		}
	case devname.AdaptiveOptics:
		if name.Equal(l.ao.name) {
			return l.ao, nil
		}
	case devname.Mount:
		if name.Equal(l.mount.name) {
			return l.mount, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, xerr.NotFound)
}

// Camera is the simulated single-Ccd camera unit (spec §4.E's
// camera+ccdindex contract).
type Camera struct {
	name devname.Name
	ccd  *Ccd
}

func (c *Camera) DeviceName() devname.Name { return c.name }
func (c *Camera) NCcds() int                { return 1 }
func (c *Camera) GetCcd(id int) (device.Ccd, error) {
	if id != 0 {
		return nil, fmt.Errorf("sim camera has 1 ccd, got index %d: %w", id, xerr.NotFound)
	}
	return c.ccd, nil
}

// Ccd is a simulated sensor that renders a synthetic star field plus read
// noise into a U16 image on every exposure.
type Ccd struct {
	name devname.Name
	info image.CcdInfo

	mu      sync.Mutex
	state   device.ExposureState
	exp     image.Exposure
	ready   *image.Image
	sink    device.ImageSink
	stream  *image.Stream
	cancel  context.CancelFunc
	seq     uint64
	starX   float64
	starY   float64
	bus     *device.Bus
}

// NewCcd returns a simulated 512x512 16-bit Ccd named name.
func NewCcd(name devname.Name) *Ccd {
	return &Ccd{
		name: name,
		info: image.CcdInfo{
			PixelsX: 512, PixelsY: 512,
			PitchXUm: 7.4, PitchYUm: 7.4,
			BinningModes: []image.BinMode{{H: 1, V: 1}, {H: 2, V: 2}, {H: 3, V: 3}},
			HasShutter:   true,
			HasCooler:    true,
			HasGuidePort: true,
			DefaultFrame: image.Rect{Left: 0, Top: 0, Width: 512, Height: 512},
		},
		state: device.Idle,
		starX: 256, starY: 256,
		bus: device.NewBus(),
	}
}

func (c *Ccd) DeviceName() devname.Name { return c.name }
func (c *Ccd) Info() image.CcdInfo      { return c.info }

// Bus exposes the Ccd's callback bus so callers can subscribe to
// ImageReady events, matching spec §4.B's "every device... a callback set".
func (c *Ccd) Bus() *device.Bus { return c.bus }

// Move offsets the simulated star's position, used by tests to inject
// drift without a real mount.
func (c *Ccd) Move(dx, dy float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starX += dx
	c.starY += dy
}

func (c *Ccd) StartExposure(exp image.Exposure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != device.Idle && c.state != device.Exposed {
		return fmt.Errorf("%w: startExposure illegal in state %s", xerr.BadState, c.state)
	}
	c.exp = exp
	c.state = device.Exposing
	return nil
}

func (c *Ccd) ExposureStatus() device.ExposureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks for the exposure's duration (or ctx cancellation), then
// renders the frame and transitions to Exposed.
func (c *Ccd) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.state != device.Exposing {
		c.mu.Unlock()
		return nil
	}
	dur := c.exp.ExposureTime
	c.mu.Unlock()

	select {
	case <-time.After(dur):
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != device.Exposing {
		return nil
	}
	c.ready = c.render()
	c.state = device.Exposed
	return nil
}

func (c *Ccd) GetImage() (*image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != device.Exposed {
		return nil, fmt.Errorf("%w: getImage illegal in state %s", xerr.BadState, c.state)
	}
	img := c.ready
	c.ready = nil
	c.state = device.Idle
	return img, nil
}

func (c *Ccd) CancelExposure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == device.Exposing || c.state == device.Streaming {
		c.state = device.Cancelling
		if c.cancel != nil {
			c.cancel()
		}
		c.state = device.Idle
	}
	return nil
}

func (c *Ccd) StartStream(exp image.Exposure) error {
	c.mu.Lock()
	if c.state != device.Idle {
		c.mu.Unlock()
		return fmt.Errorf("%w: startStream illegal in state %s", xerr.BadState, c.state)
	}
	c.state = device.Streaming
	streamer := &streamingExposer{c: c}
	c.stream = image.NewStream(streamer, 16)
	c.stream.RegisterSink(c.sink)
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	c.stream.Start(ctx, exp)
	return nil
}

func (c *Ccd) StopStream() error {
	c.mu.Lock()
	st := c.stream
	c.state = device.Idle
	c.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Stop()
}

func (c *Ccd) RegisterSink(sink device.ImageSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
	if c.stream != nil {
		c.stream.RegisterSink(sink)
	}
}

// streamingExposer adapts Ccd's pull-based exposure surface to image.Exposer.
type streamingExposer struct{ c *Ccd }

func (s *streamingExposer) StartExposure(exp image.Exposure) error { return s.c.StartExposure(exp) }
func (s *streamingExposer) Wait(ctx context.Context) error         { return s.c.Wait(ctx) }
func (s *streamingExposer) GetImage() (*image.Image, error)        { return s.c.GetImage() }
func (s *streamingExposer) CancelExposure() error                  { return s.c.CancelExposure() }

// render synthesizes a U16 frame: flat background plus read noise plus a
// Gaussian star at (starX, starY), so StarTracker has something real to
// lock onto in tests and demos.
func (c *Ccd) render() *image.Image {
	w, h := c.exp.Frame.Width, c.exp.Frame.Height
	if w == 0 || h == 0 {
		w, h = c.info.PixelsX, c.info.PixelsY
	}
	img := image.NewImage(w, h, image.U16)
	px := make([]uint16, w*h)
	const bg = 500.0
	const amp = 30000.0
	const sigma = 2.5
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - c.starX
			dy := float64(y) - c.starY
			v := bg + amp*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			v += rand.NormFloat64() * 5
			if v < 0 {
				v = 0
			}
			if v > 65535 {
				v = 65535
			}
			px[y*w+x] = uint16(v)
		}
	}
	img.SetU16(px)
	img.Metadata.Set("INSTRUME", image.Card{Value: "sim", Typed: false})
	return img
}

// Cooler is a simulated thermoelectric cooler whose actual temperature
// exponentially approaches its set point once turned on, built on
// device.CoolerBase the way a real driver would.
type Cooler struct {
	name devname.Name
	*device.CoolerBase

	mu     sync.Mutex
	actual float64
}

func NewCooler(name devname.Name) *Cooler {
	c := &Cooler{name: name, actual: 20}
	c.CoolerBase = device.NewCoolerBase(c.readActual)
	return c
}

func (c *Cooler) DeviceName() devname.Name { return c.name }

func (c *Cooler) readActual() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, _ := c.GetSetTemperature()
	on, _ := c.IsOn()
	if on {
		c.actual += (set - c.actual) * 0.3
	} else {
		c.actual += (20 - c.actual) * 0.1
	}
	return c.actual, nil
}

// FilterWheel is a simulated N-position wheel that reports MOVING for a
// brief simulated travel time before settling IDLE at the new position.
type FilterWheel struct {
	name  devname.Name
	names []string

	mu    sync.Mutex
	pos   int
	state device.FilterWheelState
}

func NewFilterWheel(name devname.Name, names []string) *FilterWheel {
	return &FilterWheel{name: name, names: names, state: device.WheelIdle}
}

func (w *FilterWheel) DeviceName() devname.Name { return w.name }
func (w *FilterWheel) NFilters() int            { return len(w.names) }

func (w *FilterWheel) CurrentPosition() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, nil
}

func (w *FilterWheel) FilterName(i int) (string, error) {
	if i < 0 || i >= len(w.names) {
		return "", fmt.Errorf("%w: filter index %d", xerr.NotFound, i)
	}
	return w.names[i], nil
}

func (w *FilterWheel) State() device.FilterWheelState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *FilterWheel) Select(i int) error {
	if i < 0 || i >= len(w.names) {
		return fmt.Errorf("%w: filter index %d", xerr.NotFound, i)
	}
	w.mu.Lock()
	if w.state == device.WheelMoving {
		w.mu.Unlock()
		return fmt.Errorf("%w: select while moving", xerr.BadState)
	}
	w.state = device.WheelMoving
	w.mu.Unlock()

	go func() {
		time.Sleep(200 * time.Millisecond)
		w.mu.Lock()
		w.pos = i
		w.state = device.WheelIdle
		w.mu.Unlock()
	}()
	return nil
}

func (w *FilterWheel) SelectByName(name string) error {
	for i, n := range w.names {
		if n == name {
			return w.Select(i)
		}
	}
	return fmt.Errorf("%w: filter name %q", xerr.NotFound, name)
}

// Focuser is a simulated linear stage built on device.FocuserBase, with an
// instantaneous (simulated) move primitive.
type Focuser struct {
	name devname.Name
	*device.FocuserBase
}

func NewFocuser(name devname.Name, min, max, backlash float64) *Focuser {
	f := &Focuser{name: name}
	f.FocuserBase = device.NewFocuserBase(min, max, backlash, func(float64) error { return nil })
	return f
}

func (f *Focuser) DeviceName() devname.Name { return f.name }

// GuidePort is a simulated relay board built on device.PulseIntegrator.
type GuidePort struct {
	name devname.Name
	*device.PulseIntegrator
}

func NewGuidePort(name devname.Name) *GuidePort {
	p := &GuidePort{name: name}
	p.PulseIntegrator = device.NewPulseIntegrator(func(channel int, on bool) {})
	return p
}

func (p *GuidePort) DeviceName() devname.Name { return p.name }

// AdaptiveOptics is a simulated tip-tilt corrector. It optionally plays
// back a pre-recorded disturbance sequence the way the teacher's
// fsm.Disturbance does (pause/resume/stop over a signal channel, looping
// on Repeat), for tests that want to exercise the guiding loop against a
// known drift pattern instead of a fixed offset.
type AdaptiveOptics struct {
	name devname.Name

	mu   sync.Mutex
	x, y float64

	disturbance *Disturbance
}

func NewAdaptiveOptics(name devname.Name) *AdaptiveOptics {
	return &AdaptiveOptics{name: name}
}

func (a *AdaptiveOptics) DeviceName() devname.Name { return a.name }

func (a *AdaptiveOptics) Set(x, y float64) error {
	if math.Abs(x) > 1 || math.Abs(y) > 1 {
		return fmt.Errorf("%w: ao set out of [-1,1] range", xerr.BadState)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.x, a.y = x, y
	return nil
}

func (a *AdaptiveOptics) Get() (x, y float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.x, a.y, nil
}

func (a *AdaptiveOptics) Center() error {
	return a.Set(0, 0)
}

// Disturbance plays back a recorded [x,y] sequence at a fixed cadence,
// ported from the teacher's fsm.Disturbance (fsm/fsm.go): a buffered data
// slice, a cursor, a pause/resume/stop signal channel, and a Callback
// invoked once per tick.
type Disturbance struct {
	data     [][2]float64
	cursor   int
	signal   chan string
	paused   bool
	DT       time.Duration
	Callback func([2]float64)
	Repeat   bool
}

// NewDisturbance returns a Disturbance over data, ticking every dt.
func NewDisturbance(data [][2]float64, dt time.Duration, repeat bool, cb func([2]float64)) *Disturbance {
	return &Disturbance{data: data, DT: dt, Repeat: repeat, Callback: cb, signal: make(chan string)}
}

// AttachDisturbance installs d as the running playback source for a, and
// starts it; a.Set calls made by other callers race with the playback the
// same way spec §5 allows racing control calls on a single-owner resource.
func (a *AdaptiveOptics) AttachDisturbance(d *Disturbance) {
	a.mu.Lock()
	a.disturbance = d
	a.mu.Unlock()
	d.Play(func(pt [2]float64) { _ = a.Set(pt[0], pt[1]) })
}

// Play begins processing the disturbance, calling onPoint for each element
// in turn until Stop is signalled or, absent Repeat, the sequence ends.
func (d *Disturbance) Play(onPoint func([2]float64)) {
	if len(d.data) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(d.DT)
		defer ticker.Stop()
		for {
			select {
			case action := <-d.signal:
				switch action {
				case "pause":
					d.paused = true
				case "resume":
					d.paused = false
				case "stop":
					return
				}
			case <-ticker.C:
				if d.paused {
					continue
				}
				onPoint(d.data[d.cursor])
				d.cursor++
				if d.cursor == len(d.data) {
					if !d.Repeat {
						return
					}
					d.cursor = 0
				}
			}
		}
	}()
}

// Pause, Resume, and Stop control a running Play loop.
func (d *Disturbance) Pause()  { d.signal <- "pause" }
func (d *Disturbance) Resume() { d.signal <- "resume" }
func (d *Disturbance) Stop()   { d.signal <- "stop" }

// Mount is a simulated equatorial mount that reaches its Goto target after
// a brief simulated slew.
type Mount struct {
	name devname.Name

	mu     sync.Mutex
	state  device.MountState
	radec  device.RaDec
	cancel context.CancelFunc
}

func NewMount(name devname.Name) *Mount {
	return &Mount{name: name, state: device.MountIdle}
}

func (m *Mount) DeviceName() devname.Name { return m.name }
func (m *Mount) State() device.MountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mount) GetRaDec() (device.RaDec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radec, nil
}

func (m *Mount) GetAzAlt() (device.AzAlt, error) {
	return device.AzAlt{}, nil
}

func (m *Mount) Goto(target device.RaDec) error {
	m.mu.Lock()
	if m.state == device.MountGoto {
		m.mu.Unlock()
		return fmt.Errorf("%w: goto already in progress", xerr.BadState)
	}
	m.state = device.MountGoto
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		select {
		case <-time.After(500 * time.Millisecond):
			m.mu.Lock()
			m.radec = target
			m.state = device.MountTracking
			m.mu.Unlock()
		case <-ctx.Done():
		}
	}()
	return nil
}

func (m *Mount) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
	m.state = device.MountIdle
	return nil
}
